package compliance

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"listing_ingest/internal/domain"
	"listing_ingest/internal/resilience"
)

// routedReasoner answers by matching a marker in the prompt.
type routedReasoner struct {
	calls   atomic.Int32
	replies map[string]string
	errs    map[string]error
}

func (r *routedReasoner) Name() string         { return "test-llm" }
func (r *routedReasoner) CostPerCall() float64 { return 0.02 }

func (r *routedReasoner) Complete(ctx context.Context, prompt string) (string, error) {
	r.calls.Add(1)
	for marker, err := range r.errs {
		if strings.Contains(prompt, marker) {
			return "", err
		}
	}
	for marker, reply := range r.replies {
		if strings.Contains(prompt, marker) {
			return reply, nil
		}
	}
	return "", errors.New("unexpected prompt")
}

const (
	termsMarker     = "website terms"
	piiMarker       = "personal data"
	copyrightMarker = "copyright exposure"
)

type stubRobots struct {
	allowed bool
	err     error
}

func (r stubRobots) RobotsAllowed(ctx context.Context, pageURL string) (bool, error) {
	return r.allowed, r.err
}

type ComplianceTestSuite struct {
	suite.Suite
	reasoner *routedReasoner
	subject  Subject
	logger   *slog.Logger
}

func (s *ComplianceTestSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.reasoner = &routedReasoner{
		replies: map[string]string{
			termsMarker:     `{"aggregation_allowed": true, "commercial_use_allowed": true, "attribution_required": false}`,
			piiMarker:       `{"pii_present": false, "risk_score": 5}`,
			copyrightMarker: `{"risk_score": 10}`,
		},
		errs: map[string]error{},
	}

	desc := "Well maintained, single owner."
	s.subject = Subject{
		URL:     "https://www.olx.in/item/2019-corolla",
		Content: "<html><body><p>Terms: listings may be shared.</p></body></html>",
		Listing: domain.CanonicalListing{
			Title:       "2019 Toyota Corolla",
			Make:        "Toyota",
			Model:       "Corolla",
			Description: &desc,
			ImageURLs:   []string{"https://img.olx.in/1.jpg"},
		},
	}
}

func TestComplianceTestSuite(t *testing.T) {
	suite.Run(t, new(ComplianceTestSuite))
}

func (s *ComplianceTestSuite) orchestrator(robots RobotsChecker) *Orchestrator {
	return NewOrchestrator(s.logger,
		NewTermsCheck(s.reasoner, robots, time.Hour),
		NewPersonalDataCheck(s.reasoner),
		NewCopyrightCheck(s.reasoner),
	)
}

func (s *ComplianceTestSuite) TestAllLowIsPending() {
	a := s.orchestrator(nil).Assess(context.Background(), s.subject)

	s.Len(a.Reports, 3)
	s.Empty(a.Failures)
	s.Equal(domain.StatusPending, a.Status)
	s.InDelta(0.1, a.RiskScore, 1e-9)
	s.InDelta(0.06, a.EstimatedCost, 1e-9)
	for _, r := range a.Reports {
		s.Equal("test-llm", r.Provider)
		s.False(r.Flagged)
	}
}

func (s *ComplianceTestSuite) TestAssess_CriticalPersonalDataAndCopyrightFailure() {
	s.reasoner.replies[piiMarker] = `{"pii_present": true, "risk_score": 85}`
	s.reasoner.errs[copyrightMarker] = &resilience.HTTPStatusError{Code: 500}

	a := s.orchestrator(nil).Assess(context.Background(), s.subject)

	s.Equal(domain.StatusFlagged, a.Status)
	s.Require().Len(a.Reports, 2)
	s.Require().Len(a.Failures, 1)
	s.Equal(domain.CheckCopyright, a.Failures[0].Kind)
	s.Equal("test-llm", a.Failures[0].Provider)
	s.Contains(a.Failures[0].Error, domain.ErrComplianceCheckFailure.Error())

	s.Equal(domain.CheckTerms, a.Reports[0].Kind)
	s.Equal(domain.RiskLow, a.Reports[0].RiskLevel)
	s.Equal(domain.CheckPersonal, a.Reports[1].Kind)
	s.Equal(domain.RiskCritical, a.Reports[1].RiskLevel)
	s.True(a.Reports[1].Flagged)
	s.InDelta((0.1+1.0)/2, a.RiskScore, 1e-9)
}

func (s *ComplianceTestSuite) TestTermsSkippedWithoutContent() {
	s.subject.Content = ""

	a := s.orchestrator(nil).Assess(context.Background(), s.subject)

	s.Len(a.Reports, 2)
	for _, r := range a.Reports {
		s.NotEqual(domain.CheckTerms, r.Kind)
	}
}

func (s *ComplianceTestSuite) TestCopyrightSkippedWithoutImages() {
	s.subject.Listing.ImageURLs = nil

	a := s.orchestrator(nil).Assess(context.Background(), s.subject)

	s.Len(a.Reports, 2)
	s.Equal(int32(2), s.reasoner.calls.Load())
}

func (s *ComplianceTestSuite) TestTermsVerdictLevels() {
	tests := []struct {
		reply string
		want  domain.RiskLevel
	}{
		{`{"aggregation_allowed": false, "commercial_use_allowed": true}`, domain.RiskCritical},
		{`{"aggregation_allowed": true, "commercial_use_allowed": false}`, domain.RiskHigh},
		{`{"aggregation_allowed": true, "commercial_use_allowed": true, "attribution_required": true}`, domain.RiskMedium},
	}

	for _, tt := range tests {
		s.reasoner.replies[termsMarker] = tt.reply
		check := NewTermsCheck(s.reasoner, nil, time.Hour)

		report, err := check.Run(context.Background(), s.subject)
		s.Require().NoError(err)
		s.Equal(tt.want, report.RiskLevel, tt.reply)
		s.Equal(tt.want.Blocking(), report.Flagged)
	}
}

func (s *ComplianceTestSuite) TestTermsVerdictCachedPerSite() {
	check := NewTermsCheck(s.reasoner, nil, time.Hour)
	ctx := context.Background()

	_, err := check.Run(ctx, s.subject)
	s.Require().NoError(err)

	other := s.subject
	other.URL = "https://olx.in/item/another"
	report, err := check.Run(ctx, other)

	s.Require().NoError(err)
	s.Equal(int32(1), s.reasoner.calls.Load())
	s.Equal(true, report.Findings["cached"])
	s.Equal("olx.in", report.Findings["site"])
	s.Zero(report.EstimatedCost)
}

func (s *ComplianceTestSuite) TestRobotsDisallowMakesTermsCritical() {
	check := NewTermsCheck(s.reasoner, stubRobots{allowed: false}, time.Hour)

	report, err := check.Run(context.Background(), s.subject)

	s.Require().NoError(err)
	s.Equal(domain.RiskCritical, report.RiskLevel)
	s.Equal(true, report.Findings["robots_disallowed"])
}

func (s *ComplianceTestSuite) TestPIILocalSignals() {
	desc := "Call 98765 43210 or mail seller@example.com"
	s.subject.Listing.Description = &desc

	report, err := NewPersonalDataCheck(s.reasoner).Run(context.Background(), s.subject)

	s.Require().NoError(err)
	s.Equal(true, report.Findings["pii_present"])
	s.Equal([]string{"phone_number", "email_address"}, report.Findings["local_signals"])
	s.Equal(domain.RiskLow, report.RiskLevel)
}

func (s *ComplianceTestSuite) TestPIIThresholds() {
	for score, want := range map[float64]domain.RiskLevel{
		71: domain.RiskCritical,
		70: domain.RiskHigh,
		41: domain.RiskHigh,
		40: domain.RiskMedium,
		21: domain.RiskMedium,
		20: domain.RiskLow,
	} {
		s.Equal(want, piiLevel(score), "score %v", score)
	}
}

func (s *ComplianceTestSuite) TestCopyrightThresholdsAndStockHosts() {
	s.Equal(domain.RiskHigh, copyrightLevel(61))
	s.Equal(domain.RiskMedium, copyrightLevel(60))
	s.Equal(domain.RiskMedium, copyrightLevel(31))
	s.Equal(domain.RiskLow, copyrightLevel(30))

	s.subject.Listing.ImageURLs = []string{"https://www.shutterstock.com/image-photo/car.jpg"}
	s.reasoner.replies[copyrightMarker] = `{"risk_score": 65, "signals": ["watermark"]}`

	report, err := NewCopyrightCheck(s.reasoner).Run(context.Background(), s.subject)

	s.Require().NoError(err)
	s.Equal(domain.RiskHigh, report.RiskLevel)
	s.Equal([]string{"shutterstock.com"}, report.Findings["stock_photo_hosts"])
}

func (s *ComplianceTestSuite) TestAggregate() {
	score, status := Aggregate(nil)
	s.Zero(score)
	s.Equal(domain.StatusPending, status)

	score, status = Aggregate([]domain.ComplianceReport{
		{RiskLevel: domain.RiskMedium},
		{RiskLevel: domain.RiskHigh},
	})
	s.InDelta(0.55, score, 1e-9)
	s.Equal(domain.StatusFlagged, status)
}

func (s *ComplianceTestSuite) TestRegistrableDomain() {
	s.Equal("olx.in", RegistrableDomain("https://www.olx.in/item/1"))
	s.Equal("cardekho.com", RegistrableDomain("m.cardekho.com/used"))
	s.Equal("example.co.uk", RegistrableDomain("https://a.b.example.co.uk"))
	s.Equal("", RegistrableDomain(""))
}
