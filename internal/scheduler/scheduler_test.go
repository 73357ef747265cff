package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"listing_ingest/internal/domain"
)

type fakeIngestor struct {
	mu      sync.Mutex
	calls   []string
	results map[string]domain.BatchResult
	errs    map[string]error
	onCall  func()
}

func (f *fakeIngestor) IngestFromURL(ctx context.Context, sourceID, url string, src domain.SourceConfig) (domain.BatchResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sourceID+" "+url)
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall()
	}
	return f.results[url], f.errs[url]
}

type fakeStates struct {
	recorded []domain.SweepState
}

func (f *fakeStates) Record(ctx context.Context, state *domain.SweepState) error {
	f.recorded = append(f.recorded, *state)
	return nil
}

type SchedulerTestSuite struct {
	suite.Suite
	ingestor *fakeIngestor
	states   *fakeStates
	sources  map[string]domain.SourceConfig
	logger   *slog.Logger
}

func (s *SchedulerTestSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.states = &fakeStates{}
	s.ingestor = &fakeIngestor{
		results: map[string]domain.BatchResult{
			"https://a.example/1": {NewListings: 2, UpdatedListings: 1},
			"https://a.example/2": {NewListings: 1, RejectedListings: 1, Errors: []string{"record 0: missing"}},
			"https://b.example/1": {Errors: []string{"extract listings: boom"}},
		},
		errs: map[string]error{
			"https://b.example/1": errors.New("extract listings: boom"),
		},
	}
	s.sources = map[string]domain.SourceConfig{
		"b-source": {Type: domain.SourceUnstructured, URLs: []string{"https://b.example/1"}},
		"a-source": {Type: domain.SourceStructured, URLs: []string{"https://a.example/1", "https://a.example/2"}},
		"idle":     {Type: domain.SourceStructured},
	}
}

func TestSchedulerTestSuite(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}

func (s *SchedulerTestSuite) TestSweep_VisitsEveryURL() {
	sched := NewScheduler(s.ingestor, s.states, s.sources, time.Hour, time.Minute, s.logger)

	stats, err := sched.Sweep(context.Background())

	s.Require().NoError(err)
	s.Equal([]string{
		"a-source https://a.example/1",
		"a-source https://a.example/2",
		"b-source https://b.example/1",
	}, s.ingestor.calls)
	s.Equal(2, stats.Sources)
	s.Equal(3, stats.URLs)
	s.Equal(3, stats.New)
	s.Equal(1, stats.Updated)
	s.Equal(1, stats.Rejected)
	s.Equal(2, stats.Errors)
}

func (s *SchedulerTestSuite) TestSweep_RecordsStatePerSource() {
	sched := NewScheduler(s.ingestor, s.states, s.sources, time.Hour, time.Minute, s.logger)

	_, err := sched.Sweep(context.Background())
	s.Require().NoError(err)

	s.Require().Len(s.states.recorded, 2)
	a := s.states.recorded[0]
	s.Equal("a-source", a.SourceID)
	s.Equal(3, a.LastNew)
	s.Equal(1, a.LastUpdated)
	s.Equal(1, a.LastRejected)
	s.Equal(1, a.LastErrors)
	s.False(a.LastSweptAt.IsZero())

	b := s.states.recorded[1]
	s.Equal("b-source", b.SourceID)
	s.Equal(1, b.LastErrors)
}

func (s *SchedulerTestSuite) TestSweep_StopsWhenCancelled() {
	ctx, cancel := context.WithCancel(context.Background())
	s.ingestor.onCall = cancel

	sched := NewScheduler(s.ingestor, nil, s.sources, time.Hour, time.Minute, s.logger)

	_, err := sched.Sweep(ctx)

	s.ErrorIs(err, context.Canceled)
	s.Len(s.ingestor.calls, 1)
}

func (s *SchedulerTestSuite) TestStart_SweepsImmediatelyAndStops() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.ingestor.onCall = func() {
		select {
		case <-done:
		default:
			close(done)
		}
	}

	sched := NewScheduler(s.ingestor, s.states, s.sources, time.Hour, time.Minute, s.logger)

	errCh := make(chan error, 1)
	go func() { errCh <- sched.Start(ctx) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.Fail("sweep did not run")
	}
	cancel()

	select {
	case err := <-errCh:
		s.ErrorIs(err, context.Canceled)
	case <-time.After(5 * time.Second):
		s.Fail("scheduler did not stop")
	}
}
