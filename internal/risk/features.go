// Package risk scores login attempts against a user's behavioral profile
// with a shared logistic model that learns from federated updates.
package risk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/openidx/hijackguard/internal/profile"
)

// Feature identifies one component of a FeatureVector
type Feature int

const (
	IPMismatch Feature = iota
	LocationDeviation
	DeviceUnknown
	BrowserUnknown
	TimeDeviation

	// NumFeatures is the length of every FeatureVector
	NumFeatures = 5
)

const (
	earthRadiusKm = 6371.0

	// Distances at or beyond this saturate location_deviation.
	locationSaturationKm = 500.0

	// Hour differences at or beyond this saturate time_deviation.
	timeSaturationHours = 12.0
)

var featureNames = [NumFeatures]string{
	IPMismatch:        "ip_mismatch",
	LocationDeviation: "location_deviation",
	DeviceUnknown:     "device_unknown",
	BrowserUnknown:    "browser_unknown",
	TimeDeviation:     "time_deviation",
}

// String returns the canonical name of the feature
func (f Feature) String() string {
	if f < 0 || int(f) >= NumFeatures {
		return fmt.Sprintf("feature(%d)", int(f))
	}
	return featureNames[f]
}

// FeatureNames returns the canonical feature names in vector order
func FeatureNames() []string {
	names := make([]string, NumFeatures)
	copy(names, featureNames[:])
	return names
}

// FeatureVector holds one value per Feature, each in [0,1] when produced by
// Extract. It encodes as a JSON object keyed by canonical name.
type FeatureVector [NumFeatures]float64

// Get returns the value of f
func (v FeatureVector) Get(f Feature) float64 {
	return v[f]
}

// Slice returns the values in canonical order
func (v FeatureVector) Slice() []float64 {
	out := make([]float64, NumFeatures)
	copy(out, v[:])
	return out
}

// Map returns the values keyed by canonical name
func (v FeatureVector) Map() map[string]float64 {
	m := make(map[string]float64, NumFeatures)
	for i, name := range featureNames {
		m[name] = v[i]
	}
	return m
}

// MarshalJSON writes the features in canonical order
func (v FeatureVector) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range featureNames {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(name)
		val, err := json.Marshal(v[i])
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON requires exactly the canonical feature names
func (v *FeatureVector) UnmarshalJSON(data []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFeatureVector, err)
	}
	fv, err := FeatureVectorFromMap(m)
	if err != nil {
		return err
	}
	*v = fv
	return nil
}

// FeatureVectorFromMap builds a vector from a name-keyed map. Missing or
// unrecognised names yield ErrInvalidFeatureVector.
func FeatureVectorFromMap(m map[string]float64) (FeatureVector, error) {
	var fv FeatureVector
	if len(m) != NumFeatures {
		return fv, fmt.Errorf("%w: expected %d features, got %d", ErrInvalidFeatureVector, NumFeatures, len(m))
	}
	for i, name := range featureNames {
		val, ok := m[name]
		if !ok {
			return fv, fmt.Errorf("%w: missing feature %q", ErrInvalidFeatureVector, name)
		}
		fv[i] = val
	}
	return fv, nil
}

// LoginAttempt is a single authentication request to be scored
type LoginAttempt struct {
	UserID    string
	IPAddress string
	Latitude  float64
	Longitude float64
	DeviceID  string
	Browser   string
	Timestamp time.Time
}

// Extract derives the feature vector for an attempt relative to the user's
// profile. It is pure and never fails.
func Extract(attempt LoginAttempt, p *profile.UserProfile) FeatureVector {
	var fv FeatureVector

	if IPPrefix(attempt.IPAddress) != p.TypicalIPPrefix {
		fv[IPMismatch] = 1
	}

	d := HaversineKm(attempt.Latitude, attempt.Longitude, p.HomeLatitude, p.HomeLongitude)
	fv[LocationDeviation] = math.Min(d/locationSaturationKm, 1)

	if !p.KnowsDevice(attempt.DeviceID) {
		fv[DeviceUnknown] = 1
	}
	if !p.KnowsBrowser(attempt.Browser) {
		fv[BrowserUnknown] = 1
	}

	fv[TimeDeviation] = timeDeviation(attempt.Timestamp, p.TypicalLoginHour)

	return fv
}

// IPPrefix returns the first two dot-separated parts of ip joined by a dot.
// Input without a dot is returned unchanged.
func IPPrefix(ip string) string {
	parts := strings.SplitN(ip, ".", 3)
	if len(parts) < 2 {
		return parts[0]
	}
	return parts[0] + "." + parts[1]
}

// HaversineKm returns the great-circle distance between two points in km
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// Rounding near antipodal points can push a just past 1.
	a = math.Min(a, 1)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// timeDeviation is linear in hours and does not wrap around midnight.
func timeDeviation(ts time.Time, typicalHour float64) float64 {
	hour := float64(ts.Hour()) + float64(ts.Minute())/60
	return math.Min(math.Abs(hour-typicalHour)/timeSaturationHours, 1)
}
