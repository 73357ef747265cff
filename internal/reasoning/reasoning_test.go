package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"listing_ingest/internal/domain"
	"listing_ingest/internal/resilience"
)

type scriptedProvider struct {
	calls   atomic.Int32
	replies []func() (string, error)
}

func (p *scriptedProvider) Name() string         { return "scripted" }
func (p *scriptedProvider) CostPerCall() float64 { return 0.01 }

func (p *scriptedProvider) Complete(ctx context.Context, prompt string) (string, error) {
	n := int(p.calls.Add(1)) - 1
	if n >= len(p.replies) {
		n = len(p.replies) - 1
	}
	return p.replies[n]()
}

func reply(text string) func() (string, error) {
	return func() (string, error) { return text, nil }
}

func fail(err error) func() (string, error) {
	return func() (string, error) { return "", err }
}

type ClientTestSuite struct {
	suite.Suite
	server  *httptest.Server
	status  int
	content string
	gotAuth string
	gotBody chatRequest
	client  *Client
}

func (s *ClientTestSuite) SetupTest() {
	s.status = http.StatusOK
	s.content = `Here you go: {"make":"Toyota","model":"Corolla"} hope it helps`

	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&s.gotBody)

		if s.status != http.StatusOK {
			w.WriteHeader(s.status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": s.content}},
			},
		})
	}))

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.client = NewClient(Config{
		BaseURL:     s.server.URL + "/v1/",
		APIKey:      "secret",
		Model:       "test-model",
		CostPerCall: 0.02,
	}, logger)
}

func (s *ClientTestSuite) TearDownTest() {
	s.server.Close()
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (s *ClientTestSuite) TestComplete() {
	text, err := s.client.Complete(context.Background(), "extract")

	s.Require().NoError(err)
	s.Contains(text, "Corolla")
	s.Equal("Bearer secret", s.gotAuth)
	s.Equal("test-model", s.gotBody.Model)
	s.Require().Len(s.gotBody.Messages, 1)
	s.Equal("extract", s.gotBody.Messages[0].Content)
	s.Equal("test-model", s.client.Name())
	s.InDelta(0.02, s.client.CostPerCall(), 1e-9)
}

func (s *ClientTestSuite) TestComplete_StatusError() {
	s.status = http.StatusServiceUnavailable

	_, err := s.client.Complete(context.Background(), "extract")

	var statusErr *resilience.HTTPStatusError
	s.Require().ErrorAs(err, &statusErr)
	s.Equal(http.StatusServiceUnavailable, statusErr.Code)
}

func (s *ClientTestSuite) TestComplete_Empty() {
	s.content = "   "

	_, err := s.client.Complete(context.Background(), "extract")
	s.ErrorIs(err, ErrEmptyCompletion)
}

func (s *ClientTestSuite) TestCompleteJSON() {
	var out struct {
		Make  string `json:"make"`
		Model string `json:"model"`
	}

	err := CompleteJSON(context.Background(), s.client, "extract", &out)

	s.Require().NoError(err)
	s.Equal("Toyota", out.Make)
	s.Equal("Corolla", out.Model)
}

func TestExtractJSON(t *testing.T) {
	got, err := ExtractJSON("```json\n{\"a\": {\"b\": 1}}\n```")
	require.NoError(t, err)
	assert.Equal(t, `{"a": {"b": 1}}`, got)

	_, err = ExtractJSON("no object here")
	assert.ErrorIs(t, err, ErrNoJSON)
}

func newGuarded(p Provider) *Guarded {
	return newBudgetedGuarded(p, 0)
}

func newBudgetedGuarded(p Provider, budget float64) *Guarded {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewGuarded(p, GuardConfig{
		DailyBudget: budget,
		Retry: resilience.RetryPolicy{
			MaxRetries: 2,
			BaseDelay:  time.Millisecond,
			Base:       2,
			MaxDelay:   2 * time.Millisecond,
		},
		Breaker: resilience.BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Hour},
	}, logger)
}

func TestGuarded_RetriesTransientFailures(t *testing.T) {
	p := &scriptedProvider{replies: []func() (string, error){
		fail(&resilience.HTTPStatusError{Code: 502}),
		reply("ok"),
	}}
	g := newGuarded(p)

	text, err := g.Complete(context.Background(), "prompt")

	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(2), p.calls.Load())
	assert.Equal(t, "scripted", g.Name())
}

func TestGuarded_OpensBreakerAndFailsFast(t *testing.T) {
	p := &scriptedProvider{replies: []func() (string, error){
		fail(&resilience.HTTPStatusError{Code: 500}),
	}}
	g := newGuarded(p)

	_, err := g.Complete(context.Background(), "prompt")
	require.Error(t, err)
	assert.Equal(t, int32(3), p.calls.Load())
	assert.Equal(t, resilience.StateOpen, g.BreakerState())

	_, err = g.Complete(context.Background(), "prompt")
	assert.True(t, errors.Is(err, resilience.ErrCircuitOpen))
	assert.Equal(t, int32(3), p.calls.Load())
}

func TestGuarded_DailyBudgetCapsCalls(t *testing.T) {
	now := time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC)
	p := &scriptedProvider{replies: []func() (string, error){reply("ok")}}
	g := newBudgetedGuarded(p, 0.02).WithClock(func() time.Time { return now })

	for range 2 {
		_, err := g.Complete(context.Background(), "prompt")
		require.NoError(t, err)
	}

	_, err := g.Complete(context.Background(), "prompt")
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	assert.Equal(t, int32(2), p.calls.Load())
	assert.Equal(t, resilience.StateClosed, g.BreakerState())

	now = now.Add(3 * time.Hour)
	text, err := g.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(3), p.calls.Load())
}

func TestGuarded_FailedCallsDoNotSpendBudget(t *testing.T) {
	p := &scriptedProvider{replies: []func() (string, error){
		fail(&resilience.HTTPStatusError{Code: 400}),
		reply("ok"),
	}}
	g := newBudgetedGuarded(p, 0.01)

	_, err := g.Complete(context.Background(), "prompt")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrQuotaExceeded)

	_, err = g.Complete(context.Background(), "prompt")
	require.NoError(t, err)

	_, err = g.Complete(context.Background(), "prompt")
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestGuarded_BudgetBelowOneCall(t *testing.T) {
	p := &scriptedProvider{replies: []func() (string, error){reply("ok")}}
	g := newBudgetedGuarded(p, 0.005)

	_, err := g.Complete(context.Background(), "prompt")

	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	assert.Equal(t, int32(0), p.calls.Load())
}
