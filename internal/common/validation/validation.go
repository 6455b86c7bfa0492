// Package validation provides input validation utilities for hijackguard
package validation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("%s: %s (value: %s)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors struct {
	Errors []*ValidationError `json:"errors"`
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("validation failed with %d errors", len(e.Errors))
}

// Add adds a validation error
func (e *ValidationErrors) Add(field, message string, value ...string) {
	verr := &ValidationError{
		Field:   field,
		Message: message,
	}
	if len(value) > 0 {
		verr.Value = value[0]
	}
	e.Errors = append(e.Errors, verr)
}

// HasErrors returns true if there are validation errors
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first collected error, or nil
func (e *ValidationErrors) First() *ValidationError {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[0]
}

// String validators

// ValidateRequired checks if a string is not empty
func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{
			Field:   field,
			Message: "is required",
		}
	}
	return nil
}

// Float validators. NaN and ±Inf never pass.

// ValidateFinite checks that value is neither NaN nor infinite
func ValidateFinite(field string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return &ValidationError{
			Field:   field,
			Message: "must be a finite number",
			Value:   formatFloat(value),
		}
	}
	return nil
}

// ValidateFloatRange checks that value is finite and within [min, max]
func ValidateFloatRange(field string, value, min, max float64) error {
	if err := ValidateFinite(field, value); err != nil {
		return err
	}
	if value < min || value > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be between %s and %s", formatFloat(min), formatFloat(max)),
			Value:   formatFloat(value),
		}
	}
	return nil
}

// ValidateUnitInterval checks that value is finite and within [0, 1]
func ValidateUnitInterval(field string, value float64) error {
	return ValidateFloatRange(field, value, 0, 1)
}

// ValidateLatitude checks a WGS84 latitude in degrees
func ValidateLatitude(field string, value float64) error {
	return ValidateFloatRange(field, value, -90, 90)
}

// ValidateLongitude checks a WGS84 longitude in degrees
func ValidateLongitude(field string, value float64) error {
	return ValidateFloatRange(field, value, -180, 180)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Helper functions for batch validation

// ValidateAll runs multiple validators and collects errors
func ValidateAll(validators ...func() error) error {
	errors := &ValidationErrors{}

	for _, validator := range validators {
		if err := validator(); err != nil {
			if verr, ok := err.(*ValidationError); ok {
				errors.Errors = append(errors.Errors, verr)
			} else if verrs, ok := err.(*ValidationErrors); ok {
				errors.Errors = append(errors.Errors, verrs.Errors...)
			}
		}
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}
