package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"listing_ingest/internal/domain"
)

const (
	PrefixVIN          = "VIN:"
	PrefixRegistration = "REG:"
	PrefixHash         = "HASH:"
)

// Compute derives the listing's identity key: the VIN when present, else the
// registration number, else a sha256 of make, model, year and the source's
// own listing id. Identical inputs always give the identical key.
func Compute(l domain.CanonicalListing) string {
	if l.VIN != nil {
		if vin := strings.ToUpper(strings.TrimSpace(*l.VIN)); vin != "" {
			return PrefixVIN + vin
		}
	}

	if l.Registration != nil {
		if reg := normalizeRegistration(*l.Registration); reg != "" {
			return PrefixRegistration + reg
		}
	}

	return PrefixHash + ContentHash(l.Make, l.Model, l.Year, l.SourceListingID)
}

// ContentHash is the hex sha256 of "make|model|year|sourceListingID".
func ContentHash(vehicleMake, model string, year int, sourceListingID string) string {
	sum := sha256.Sum256([]byte(vehicleMake + "|" + model + "|" + strconv.Itoa(year) + "|" + sourceListingID))
	return hex.EncodeToString(sum[:])
}

func normalizeRegistration(reg string) string {
	r := strings.NewReplacer(" ", "", "-", "", "\t", "")
	return strings.ToUpper(r.Replace(strings.TrimSpace(reg)))
}

// Finder looks up a persisted listing id by fingerprint.
type Finder interface {
	FindIDByFingerprint(ctx context.Context, fingerprint string) (int64, bool, error)
}

type Detector struct {
	finder Finder
}

func NewDetector(finder Finder) *Detector {
	return &Detector{finder: finder}
}

// CheckDuplicate reports the id of the listing already stored under fp, if any.
func (d *Detector) CheckDuplicate(ctx context.Context, fp string) (int64, bool, error) {
	id, found, err := d.finder.FindIDByFingerprint(ctx, fp)
	if err != nil {
		return 0, false, fmt.Errorf("find by fingerprint: %w", err)
	}
	return id, found, nil
}
