package normalize

import (
	"strings"
	"unicode"
)

type aliasRule struct {
	field   string
	aliases []string
}

// Known source names per canonical field, in priority order.
var aliasRules = []aliasRule{
	{FieldTitle, []string{"title", "name", "heading", "listing_title", "ad_title", "headline"}},
	{FieldMake, []string{"make", "brand", "manufacturer", "company", "oem"}},
	{FieldModel, []string{"model", "model_name", "car_model"}},
	{FieldYear, []string{"year", "model_year", "manufacturing_year", "mfg_year", "make_year", "registration_year"}},
	{FieldPrice, []string{"price", "price_amount", "amount", "asking_price", "price_inr", "selling_price", "expected_price", "cost"}},
	{FieldCurrency, []string{"currency", "price_currency", "currency_code"}},
	{FieldCity, []string{"city", "location", "locality", "town", "region", "place"}},
	{FieldVIN, []string{"vin", "chassis_number", "chassis_no", "vehicle_identification_number"}},
	{FieldRegistration, []string{"registration", "registration_number", "registration_no", "reg_no", "regno", "plate", "number_plate", "license_plate"}},
	{FieldMileage, []string{"mileage", "kms", "km_driven", "kms_driven", "odometer", "kilometers", "kilometres"}},
	{FieldFuelType, []string{"fuel_type", "fuel"}},
	{FieldTransmission, []string{"transmission", "gearbox", "transmission_type"}},
	{FieldOwnerCount, []string{"owner_count", "owners", "owner", "no_of_owners", "ownership"}},
	{FieldImages, []string{"images", "image_urls", "photos", "pictures", "image", "image_url", "thumbnail"}},
	{FieldDescription, []string{"description", "desc", "details", "summary", "body"}},
	{FieldSellerType, []string{"seller_type", "seller", "posted_by", "dealer_type"}},
	{FieldVerification, []string{"verification", "verification_flags", "verified"}},
	{FieldSourceListingID, []string{"source_listing_id", "listing_id", "ad_id", "external_id", "id"}},
	{FieldURL, []string{"url", "link", "listing_url", "source_url", "permalink"}},
}

// Payload keys under which sources commonly nest the listing itself.
var nestedContainers = []string{"extracted", "data", "listing", "attributes", "details", "specs", "vehicle"}

func aliasKey(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// flatten indexes fields by alias key. Top-level keys win over nested ones.
func flatten(fields map[string]any) map[string]any {
	index := make(map[string]any, len(fields))
	for k, v := range fields {
		index[aliasKey(k)] = v
	}

	for _, container := range nestedContainers {
		nested, ok := fields[container].(map[string]any)
		if !ok {
			continue
		}
		for k, v := range nested {
			key := aliasKey(k)
			if _, exists := index[key]; !exists {
				index[key] = v
			}
		}
	}
	return index
}

// applyAliases resolves every canonical field from the first alias present in fields.
func applyAliases(d Draft, fields map[string]any) Draft {
	index := flatten(fields)
	for _, rule := range aliasRules {
		for _, alias := range rule.aliases {
			if d.Has(rule.field) {
				break
			}
			if v, ok := index[aliasKey(alias)]; ok {
				d = d.With(rule.field, v)
			}
		}
	}
	return d
}

// lookupPath reads a field by name, following dots into nested objects.
func lookupPath(fields map[string]any, path string) (any, bool) {
	if v, ok := fields[path]; ok {
		return v, true
	}

	current := any(fields)
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
