package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"listing_ingest/internal/domain"
)

const (
	uniqueViolation       = "23505"
	fingerprintConstraint = "listings_fingerprint_key"
)

type ListingStore struct {
	db *sqlx.DB
}

func NewListingStore(db *sqlx.DB) *ListingStore {
	return &ListingStore{db: db}
}

type listingRow struct {
	ID              int64          `db:"id"`
	Fingerprint     string         `db:"fingerprint"`
	SourceID        string         `db:"source_id"`
	SourceListingID string         `db:"source_listing_id"`
	SourceURL       string         `db:"source_url"`
	Title           string         `db:"title"`
	Make            string         `db:"make"`
	Model           string         `db:"model"`
	Year            int            `db:"year"`
	PriceAmount     float64        `db:"price_amount"`
	PriceCurrency   string         `db:"price_currency"`
	City            string         `db:"city"`
	VIN             *string        `db:"vin"`
	Registration    *string        `db:"registration"`
	Mileage         *int           `db:"mileage"`
	FuelType        *string        `db:"fuel_type"`
	Transmission    *string        `db:"transmission"`
	OwnerCount      *int           `db:"owner_count"`
	ImageURLs       pq.StringArray `db:"image_urls"`
	Description     *string        `db:"description"`
	SellerType      *string        `db:"seller_type"`
	Verification    []byte         `db:"verification"`
	Confidence      float64        `db:"confidence"`
	RiskScore       float64        `db:"risk_score"`
	Status          string         `db:"status"`
	FirstSeenAt     time.Time      `db:"first_seen_at"`
	LastSeenAt      time.Time      `db:"last_seen_at"`
}

func (r listingRow) toDomain() (*domain.CanonicalListing, error) {
	l := &domain.CanonicalListing{
		ID:              r.ID,
		Fingerprint:     r.Fingerprint,
		SourceID:        r.SourceID,
		SourceListingID: r.SourceListingID,
		SourceURL:       r.SourceURL,
		Title:           r.Title,
		Make:            r.Make,
		Model:           r.Model,
		Year:            r.Year,
		Price:           domain.Price{Amount: r.PriceAmount, Currency: r.PriceCurrency},
		City:            r.City,
		VIN:             r.VIN,
		Registration:    r.Registration,
		Mileage:         r.Mileage,
		FuelType:        r.FuelType,
		Transmission:    r.Transmission,
		OwnerCount:      r.OwnerCount,
		ImageURLs:       []string(r.ImageURLs),
		Description:     r.Description,
		SellerType:      r.SellerType,
		Confidence:      r.Confidence,
		RiskScore:       r.RiskScore,
		Status:          domain.ListingStatus(r.Status),
		FirstSeenAt:     r.FirstSeenAt,
		LastSeenAt:      r.LastSeenAt,
	}
	if len(r.Verification) > 0 {
		if err := json.Unmarshal(r.Verification, &l.Verification); err != nil {
			return nil, fmt.Errorf("decode verification: %w", err)
		}
	}
	return l, nil
}

const listingColumns = `
	id, fingerprint, source_id, source_listing_id, source_url, title, make, model, year,
	price_amount, price_currency, city, vin, registration, mileage, fuel_type, transmission,
	owner_count, image_urls, description, seller_type, verification, confidence, risk_score,
	status, first_seen_at, last_seen_at`

// Insert stores a new listing. The fingerprint uniqueness constraint is the
// authority on duplicates: losing a race to an identical listing returns
// domain.ErrPersistenceConflict.
func (s *ListingStore) Insert(ctx context.Context, l *domain.CanonicalListing) (int64, error) {
	verification, err := json.Marshal(l.Verification)
	if err != nil {
		return 0, fmt.Errorf("encode verification: %w", err)
	}
	if l.Verification == nil {
		verification = []byte("{}")
	}
	images := l.ImageURLs
	if images == nil {
		images = []string{}
	}
	status := l.Status
	if status == "" {
		status = domain.StatusPending
	}

	query := `
		INSERT INTO listings (
			fingerprint, source_id, source_listing_id, source_url, title, make, model, year,
			price_amount, price_currency, city, vin, registration, mileage, fuel_type,
			transmission, owner_count, image_urls, description, seller_type, verification,
			risk_score, status, first_seen_at, last_seen_at, confidence
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $24, $25
		)
		ON CONFLICT (fingerprint) DO NOTHING
		RETURNING id`

	seenAt := l.FirstSeenAt
	if seenAt.IsZero() {
		seenAt = time.Now().UTC()
	}

	var id int64
	err = GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		l.Fingerprint,
		l.SourceID,
		l.SourceListingID,
		l.SourceURL,
		l.Title,
		l.Make,
		l.Model,
		l.Year,
		l.Price.Amount,
		l.Price.Currency,
		l.City,
		l.VIN,
		l.Registration,
		l.Mileage,
		l.FuelType,
		l.Transmission,
		l.OwnerCount,
		pq.Array(images),
		l.Description,
		l.SellerType,
		verification,
		l.RiskScore,
		string(status),
		seenAt,
		l.Confidence,
	).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err, fingerprintConstraint) {
		return 0, fmt.Errorf("insert listing %s: %w", l.Fingerprint, domain.ErrPersistenceConflict)
	}
	if err != nil {
		return 0, fmt.Errorf("insert listing: %w", err)
	}

	return id, nil
}

func (s *ListingStore) FindIDByFingerprint(ctx context.Context, fingerprint string) (int64, bool, error) {
	var id int64
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &id,
		"SELECT id FROM listings WHERE fingerprint = $1", fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// FindByFingerprint returns nil when no listing carries the fingerprint.
func (s *ListingStore) FindByFingerprint(ctx context.Context, fingerprint string) (*domain.CanonicalListing, error) {
	return s.getOne(ctx, "SELECT"+listingColumns+" FROM listings WHERE fingerprint = $1", fingerprint)
}

func (s *ListingStore) GetByID(ctx context.Context, id int64) (*domain.CanonicalListing, error) {
	return s.getOne(ctx, "SELECT"+listingColumns+" FROM listings WHERE id = $1", id)
}

func (s *ListingStore) getOne(ctx context.Context, query string, arg any) (*domain.CanonicalListing, error) {
	var row listingRow
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &row, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

func (s *ListingStore) TouchLastSeen(ctx context.Context, id int64, seenAt time.Time) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		"UPDATE listings SET last_seen_at = GREATEST(last_seen_at, $2) WHERE id = $1",
		id, seenAt,
	)
	return err
}

func (s *ListingStore) CountByStatus(ctx context.Context) (map[domain.ListingStatus]int, error) {
	rows, err := GetExecutor(ctx, s.db).QueryxContext(ctx,
		"SELECT status, COUNT(*) FROM listings GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[domain.ListingStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		result[domain.ListingStatus(status)] = count
	}
	return result, rows.Err()
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == uniqueViolation && pqErr.Constraint == constraint
}
