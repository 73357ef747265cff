package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"listing_ingest/internal/domain"
)

type ReportStore struct {
	db *sqlx.DB
}

func NewReportStore(db *sqlx.DB) *ReportStore {
	return &ReportStore{db: db}
}

const reportColumns = 9

// InsertBatch writes one row per report and per failed check. Reports are
// append-only; a re-assessment adds rows rather than editing old ones.
func (s *ReportStore) InsertBatch(ctx context.Context, listingID int64, reports []domain.ComplianceReport, failures []domain.CheckFailure) error {
	if len(reports)+len(failures) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO compliance_reports (
		listing_id, check_kind, provider, risk_level, flagged, findings, latency_ms, estimated_cost, error
	) VALUES `)
	args := make([]any, 0, (len(reports)+len(failures))*reportColumns)

	row := 0
	writeRow := func(values ...any) {
		if row > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for i := range values {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("$")
			sb.WriteString(strconv.Itoa(row*reportColumns + i + 1))
		}
		sb.WriteString(")")
		args = append(args, values...)
		row++
	}

	for _, r := range reports {
		findings, err := json.Marshal(r.Findings)
		if err != nil {
			return fmt.Errorf("encode findings for %s: %w", r.Kind, err)
		}
		if r.Findings == nil {
			findings = []byte("{}")
		}
		writeRow(listingID, string(r.Kind), r.Provider, string(r.RiskLevel), r.Flagged,
			findings, r.Latency.Milliseconds(), r.EstimatedCost, nil)
	}
	for _, f := range failures {
		writeRow(listingID, string(f.Kind), f.Provider, nil, false,
			[]byte("{}"), f.Latency.Milliseconds(), 0.0, f.Error)
	}

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, sb.String(), args...)
	return err
}

type reportRow struct {
	ID            int64          `db:"id"`
	ListingID     int64          `db:"listing_id"`
	CheckKind     string         `db:"check_kind"`
	Provider      string         `db:"provider"`
	RiskLevel     sql.NullString `db:"risk_level"`
	Flagged       bool           `db:"flagged"`
	Findings      []byte         `db:"findings"`
	LatencyMS     int64          `db:"latency_ms"`
	EstimatedCost float64        `db:"estimated_cost"`
	Error         sql.NullString `db:"error"`
	CreatedAt     time.Time      `db:"created_at"`
}

func (s *ReportStore) GetByListingID(ctx context.Context, listingID int64) ([]domain.ComplianceReport, []domain.CheckFailure, error) {
	query := `
		SELECT id, listing_id, check_kind, provider, risk_level, flagged, findings,
			latency_ms, estimated_cost, error, created_at
		FROM compliance_reports
		WHERE listing_id = $1
		ORDER BY id`

	var rows []reportRow
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &rows, query, listingID); err != nil {
		return nil, nil, err
	}

	var reports []domain.ComplianceReport
	var failures []domain.CheckFailure
	for _, r := range rows {
		latency := time.Duration(r.LatencyMS) * time.Millisecond
		if r.Error.Valid {
			failures = append(failures, domain.CheckFailure{
				Kind:     domain.CheckKind(r.CheckKind),
				Provider: r.Provider,
				Error:    r.Error.String,
				Latency:  latency,
			})
			continue
		}

		report := domain.ComplianceReport{
			ID:            r.ID,
			ListingID:     r.ListingID,
			Kind:          domain.CheckKind(r.CheckKind),
			Provider:      r.Provider,
			RiskLevel:     domain.RiskLevel(r.RiskLevel.String),
			Flagged:       r.Flagged,
			Latency:       latency,
			EstimatedCost: r.EstimatedCost,
			CreatedAt:     r.CreatedAt,
		}
		if err := json.Unmarshal(r.Findings, &report.Findings); err != nil {
			return nil, nil, fmt.Errorf("decode findings of report %d: %w", r.ID, err)
		}
		reports = append(reports, report)
	}
	return reports, failures, nil
}
