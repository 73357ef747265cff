package domain

import (
	"errors"
	"strings"
)

var (
	ErrExtractionFailure      = errors.New("extraction failure")
	ErrQuotaExceeded          = errors.New("daily quota exceeded")
	ErrMissingRequiredFields  = errors.New("missing required fields")
	ErrInvalidListing         = errors.New("invalid listing")
	ErrOutsideLocale          = errors.New("listing outside allowed locales")
	ErrComplianceCheckFailure = errors.New("compliance check failure")
	ErrPersistenceConflict    = errors.New("persistence conflict")
	ErrUnknownSource          = errors.New("unknown source")
)

type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return ErrMissingRequiredFields.Error() + ": " + strings.Join(e.Fields, ", ")
}

func (e *MissingFieldsError) Unwrap() error {
	return ErrMissingRequiredFields
}
