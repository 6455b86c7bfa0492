package validation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name        string
		value       string
		expectError bool
	}{
		{"Valid value", "device-alice-1", false},
		{"Empty string", "", true},
		{"Whitespace only", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequired("device_id", tt.value)
			if tt.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "is required")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateFloatRange(t *testing.T) {
	tests := []struct {
		name        string
		value       float64
		expectError bool
	}{
		{"Lower bound", 0, false},
		{"Upper bound", 1, false},
		{"Inside", 0.42, false},
		{"Below", -0.0001, true},
		{"Above", 1.0001, true},
		{"NaN", math.NaN(), true},
		{"Positive infinity", math.Inf(1), true},
		{"Negative infinity", math.Inf(-1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUnitInterval("label", tt.value)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateCoordinates(t *testing.T) {
	assert.NoError(t, ValidateLatitude("latitude", -90))
	assert.NoError(t, ValidateLatitude("latitude", 37.7749))
	assert.Error(t, ValidateLatitude("latitude", 90.01))

	assert.NoError(t, ValidateLongitude("longitude", 180))
	assert.NoError(t, ValidateLongitude("longitude", -122.4194))
	assert.Error(t, ValidateLongitude("longitude", -180.5))
}

func TestValidationError_Message(t *testing.T) {
	err := ValidateFloatRange("latitude", 123, -90, 90)
	require.Error(t, err)
	assert.Equal(t, "latitude: must be between -90 and 90 (value: 123)", err.Error())

	err = ValidateFinite("score", math.NaN())
	assert.Equal(t, "score: must be a finite number (value: NaN)", err.Error())
}

func TestValidateAll(t *testing.T) {
	err := ValidateAll(
		func() error { return ValidateRequired("ip_address", "") },
		func() error { return ValidateLatitude("latitude", 10) },
		func() error { return ValidateLongitude("longitude", 999) },
	)
	require.Error(t, err)

	verrs, ok := err.(*ValidationErrors)
	require.True(t, ok)
	assert.Len(t, verrs.Errors, 2)
	assert.Equal(t, "ip_address", verrs.First().Field)
	assert.Equal(t, "validation failed with 2 errors", err.Error())

	assert.NoError(t, ValidateAll(
		func() error { return ValidateRequired("ip_address", "10.0.0.1") },
	))
}
