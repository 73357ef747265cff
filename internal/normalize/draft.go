package normalize

import (
	"maps"
	"slices"
	"strings"

	"listing_ingest/internal/domain"
)

// Canonical field names accepted by field maps and reasoning output.
const (
	FieldTitle           = "title"
	FieldMake            = "make"
	FieldModel           = "model"
	FieldYear            = "year"
	FieldPrice           = "price"
	FieldCurrency        = "currency"
	FieldCity            = "city"
	FieldVIN             = "vin"
	FieldRegistration    = "registration"
	FieldMileage         = "mileage"
	FieldFuelType        = "fuel_type"
	FieldTransmission    = "transmission"
	FieldOwnerCount      = "owner_count"
	FieldImages          = "images"
	FieldDescription     = "description"
	FieldSellerType      = "seller_type"
	FieldVerification    = "verification"
	FieldSourceListingID = "source_listing_id"
	FieldURL             = "url"
)

var requiredFields = []string{FieldTitle, FieldMake, FieldModel}

// Draft is a partially resolved listing. Every method returns a new Draft;
// a field, once set, is never overwritten.
type Draft struct {
	listing domain.CanonicalListing
	set     map[string]bool
}

func NewDraft() Draft {
	return Draft{set: map[string]bool{}}
}

func (d Draft) Has(field string) bool {
	return d.set[field]
}

// Missing lists the required fields not yet resolved.
func (d Draft) Missing() []string {
	var missing []string
	for _, f := range requiredFields {
		if !d.set[f] {
			missing = append(missing, f)
		}
	}
	return missing
}

func (d Draft) clone() Draft {
	out := Draft{listing: d.listing, set: maps.Clone(d.set)}
	if out.set == nil {
		out.set = map[string]bool{}
	}
	out.listing.ImageURLs = slices.Clone(d.listing.ImageURLs)
	out.listing.Verification = maps.Clone(d.listing.Verification)
	return out
}

// With resolves field from raw unless it is already set or raw cannot be
// converted to the field's type.
func (d Draft) With(field string, raw any) Draft {
	if d.set[field] || raw == nil {
		return d
	}

	out := d.clone()
	l := &out.listing
	ok := false

	switch field {
	case FieldTitle:
		if s, good := toString(raw); good {
			l.Title, ok = collapseSpace(s), true
		}
	case FieldMake:
		l.Make, ok = toString(raw)
	case FieldModel:
		l.Model, ok = toString(raw)
	case FieldYear:
		l.Year, ok = ParseYear(raw)
	case FieldPrice:
		var currency string
		l.Price.Amount, currency, ok = ParsePrice(raw)
		if ok && currency != "" && !out.set[FieldCurrency] {
			l.Price.Currency = currency
			out.set[FieldCurrency] = true
		}
	case FieldCurrency:
		if s, good := toString(raw); good {
			if c := DetectCurrency(s); c != "" {
				l.Price.Currency, ok = c, true
			} else {
				l.Price.Currency, ok = strings.ToUpper(s), true
			}
		}
	case FieldCity:
		if s, good := toString(raw); good {
			l.City = CanonicalCity(s)
			ok = l.City != ""
		}
	case FieldVIN:
		l.VIN, ok = optionalString(raw)
	case FieldRegistration:
		l.Registration, ok = optionalString(raw)
	case FieldMileage:
		if v, good := ParseMileage(raw); good {
			l.Mileage, ok = &v, true
		}
	case FieldFuelType:
		l.FuelType, ok = optionalLower(raw)
	case FieldTransmission:
		l.Transmission, ok = optionalLower(raw)
	case FieldOwnerCount:
		if v, good := ParseOwnerCount(raw); good {
			l.OwnerCount, ok = &v, true
		}
	case FieldImages:
		l.ImageURLs = toStrings(raw)
		ok = len(l.ImageURLs) > 0
	case FieldDescription:
		l.Description, ok = optionalString(raw)
	case FieldSellerType:
		l.SellerType, ok = optionalLower(raw)
	case FieldVerification:
		l.Verification = toFlags(raw)
		ok = len(l.Verification) > 0
	case FieldSourceListingID:
		l.SourceListingID, ok = toID(raw)
	case FieldURL:
		l.SourceURL, ok = toString(raw)
	}

	if !ok {
		return d
	}
	out.set[field] = true
	return out
}

// Fill takes every field other has resolved and d has not.
func (d Draft) Fill(other Draft) Draft {
	out := d.clone()
	o := other.listing
	l := &out.listing

	take := func(field string, apply func()) {
		if other.set[field] && !out.set[field] {
			apply()
			out.set[field] = true
		}
	}

	take(FieldTitle, func() { l.Title = o.Title })
	take(FieldMake, func() { l.Make = o.Make })
	take(FieldModel, func() { l.Model = o.Model })
	take(FieldYear, func() { l.Year = o.Year })
	take(FieldPrice, func() { l.Price.Amount = o.Price.Amount })
	take(FieldCurrency, func() { l.Price.Currency = o.Price.Currency })
	take(FieldCity, func() { l.City = o.City })
	take(FieldVIN, func() { l.VIN = o.VIN })
	take(FieldRegistration, func() { l.Registration = o.Registration })
	take(FieldMileage, func() { l.Mileage = o.Mileage })
	take(FieldFuelType, func() { l.FuelType = o.FuelType })
	take(FieldTransmission, func() { l.Transmission = o.Transmission })
	take(FieldOwnerCount, func() { l.OwnerCount = o.OwnerCount })
	take(FieldImages, func() { l.ImageURLs = slices.Clone(o.ImageURLs) })
	take(FieldDescription, func() { l.Description = o.Description })
	take(FieldSellerType, func() { l.SellerType = o.SellerType })
	take(FieldVerification, func() { l.Verification = maps.Clone(o.Verification) })
	take(FieldSourceListingID, func() { l.SourceListingID = o.SourceListingID })
	take(FieldURL, func() { l.SourceURL = o.SourceURL })

	return out
}

// Listing returns a copy of the resolved listing.
func (d Draft) Listing() domain.CanonicalListing {
	return d.clone().listing
}
