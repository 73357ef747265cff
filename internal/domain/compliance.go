package domain

import "time"

type CheckKind string

const (
	CheckTerms     CheckKind = "tos"
	CheckPersonal  CheckKind = "pii"
	CheckCopyright CheckKind = "copyright"
)

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Weight is the numeric contribution of a level to the overall risk score.
func (r RiskLevel) Weight() float64 {
	switch r {
	case RiskCritical:
		return 1.0
	case RiskHigh:
		return 0.7
	case RiskMedium:
		return 0.4
	default:
		return 0.1
	}
}

func (r RiskLevel) Blocking() bool {
	return r == RiskHigh || r == RiskCritical
}

type ComplianceReport struct {
	ID            int64          `json:"id,omitempty"`
	ListingID     int64          `json:"listing_id,omitempty"`
	Kind          CheckKind      `json:"kind"`
	Provider      string         `json:"provider"`
	RiskLevel     RiskLevel      `json:"risk_level"`
	Flagged       bool           `json:"flagged"`
	Findings      map[string]any `json:"findings,omitempty"`
	Latency       time.Duration  `json:"latency"`
	EstimatedCost float64        `json:"estimated_cost"`
	CreatedAt     time.Time      `json:"created_at,omitempty"`
}

// CheckFailure records a compliance check whose provider call failed after
// retries. It is kept as a low-confidence gap rather than a report.
type CheckFailure struct {
	Kind     CheckKind     `json:"kind"`
	Provider string        `json:"provider"`
	Error    string        `json:"error"`
	Latency  time.Duration `json:"latency"`
}
