package risk

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openidx/hijackguard/internal/profile"
)

func alice() *profile.UserProfile {
	return profile.DemoProfiles()[0]
}

func baselineAttempt() LoginAttempt {
	return LoginAttempt{
		UserID:    "alice",
		IPAddress: "192.168.1.20",
		Latitude:  37.7749,
		Longitude: -122.4194,
		DeviceID:  "device-alice-1",
		Browser:   "Chrome",
		Timestamp: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
	}
}

func TestExtract_Baseline(t *testing.T) {
	fv := Extract(baselineAttempt(), alice())
	assert.Equal(t, FeatureVector{}, fv)
}

func TestExtract_AllMismatched(t *testing.T) {
	a := baselineAttempt()
	a.IPAddress = "203.0.113.7"
	// roughly 1000 km north-east of San Francisco
	a.Latitude = 45.5
	a.Longitude = -114.0
	a.DeviceID = "unknown-device"
	a.Browser = "Opera"
	a.Timestamp = time.Date(2024, 3, 4, 21, 30, 0, 0, time.UTC)

	require.Greater(t, HaversineKm(a.Latitude, a.Longitude, 37.7749, -122.4194), 500.0)

	fv := Extract(a, alice())
	for i := 0; i < NumFeatures; i++ {
		assert.Equal(t, 1.0, fv[i], Feature(i).String())
	}
}

func TestExtract_PartialDeviation(t *testing.T) {
	a := baselineAttempt()
	a.Timestamp = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	a.Latitude = 37.7749 + 1 // one degree of latitude is about 111 km

	fv := Extract(a, alice())
	assert.Equal(t, 0.0, fv[IPMismatch])
	assert.InDelta(t, 111.19/500, fv[LocationDeviation], 0.001)
	assert.InDelta(t, 0.25, fv[TimeDeviation], 1e-9)
}

func TestExtract_TimeUsesOwnLocationAndIgnoresSeconds(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	a := baselineAttempt()
	a.Timestamp = time.Date(2024, 3, 4, 15, 0, 59, 0, loc)

	fv := Extract(a, alice())
	assert.InDelta(t, 0.5, fv[TimeDeviation], 1e-9)
}

func TestExtract_TimeDoesNotWrapMidnight(t *testing.T) {
	p := alice()
	p.TypicalLoginHour = 23.5
	a := baselineAttempt()
	a.Timestamp = time.Date(2024, 3, 4, 0, 30, 0, 0, time.UTC)

	fv := Extract(a, p)
	assert.Equal(t, 1.0, fv[TimeDeviation])
}

func TestIPPrefix(t *testing.T) {
	tests := []struct {
		ip   string
		want string
	}{
		{"192.168.1.1", "192.168"},
		{"10.0.0.1", "10.0"},
		{"10.0", "10.0"},
		{"localhost", "localhost"},
		{"", ""},
		{"2001:db8::1", "2001:db8::1"},
		{"a.b.c.d.e", "a.b"},
	}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			assert.Equal(t, tt.want, IPPrefix(tt.ip))
		})
	}
}

func TestHaversineKm(t *testing.T) {
	sf := [2]float64{37.7749, -122.4194}
	nyc := [2]float64{40.7128, -74.0060}

	assert.Equal(t, 0.0, HaversineKm(sf[0], sf[1], sf[0], sf[1]))

	d1 := HaversineKm(sf[0], sf[1], nyc[0], nyc[1])
	d2 := HaversineKm(nyc[0], nyc[1], sf[0], sf[1])
	assert.Equal(t, d1, d2)
	assert.InDelta(t, 4129, d1, 5)

	antipode := HaversineKm(0, 0, 0, 180)
	assert.InDelta(t, math.Pi*earthRadiusKm, antipode, 1e-6)
}

func TestHaversineKm_NearAntipodal(t *testing.T) {
	d := HaversineKm(88.5, 0.5, -88.5, -179.5)
	require.False(t, math.IsNaN(d))
	assert.InDelta(t, math.Pi*earthRadiusKm, d, 1e-6)

	var nan int
	for lat := -90.0; lat <= 90; lat += 0.5 {
		for lon := -180.0; lon < 180; lon += 0.5 {
			antiLon := lon + 180
			if antiLon >= 180 {
				antiLon -= 360
			}
			if math.IsNaN(HaversineKm(lat, lon, -lat, antiLon)) {
				nan++
			}
		}
	}
	assert.Zero(t, nan)
}

func TestExtract_NearAntipodalHome(t *testing.T) {
	p := alice()
	p.HomeLatitude = 88.5
	p.HomeLongitude = 0.5

	a := baselineAttempt()
	a.Latitude = -88.5
	a.Longitude = -179.5

	fv := Extract(a, p)
	assert.Equal(t, 1.0, fv[LocationDeviation])
	_, err := json.Marshal(fv)
	assert.NoError(t, err)
}

func TestExtract_Deterministic(t *testing.T) {
	a := baselineAttempt()
	a.IPAddress = "10.1.2.3"
	a.Latitude = 40.7128
	a.Longitude = -74.0060
	a.Timestamp = time.Date(2024, 3, 4, 17, 45, 0, 0, time.UTC)

	assert.Equal(t, Extract(a, alice()), Extract(a, alice()))
}

func TestFeatureVector_JSON(t *testing.T) {
	fv := FeatureVector{1, 0.5, 0, 1, 0.25}

	data, err := json.Marshal(fv)
	require.NoError(t, err)
	assert.Equal(t,
		`{"ip_mismatch":1,"location_deviation":0.5,"device_unknown":0,"browser_unknown":1,"time_deviation":0.25}`,
		string(data))

	var decoded FeatureVector
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, fv, decoded)
}

func TestFeatureVectorFromMap_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]float64
	}{
		{"empty", map[string]float64{}},
		{"missing one", map[string]float64{
			"ip_mismatch": 0, "location_deviation": 0, "device_unknown": 0, "browser_unknown": 0,
		}},
		{"renamed", map[string]float64{
			"ip_mismatch": 0, "location_deviation": 0, "device_unknown": 0, "browser_unknown": 0, "hour": 0,
		}},
		{"extra", map[string]float64{
			"ip_mismatch": 0, "location_deviation": 0, "device_unknown": 0, "browser_unknown": 0,
			"time_deviation": 0, "velocity": 0,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FeatureVectorFromMap(tt.in)
			assert.ErrorIs(t, err, ErrInvalidFeatureVector)
		})
	}
}

func TestFeature_String(t *testing.T) {
	assert.Equal(t, "time_deviation", TimeDeviation.String())
	assert.Equal(t, "feature(9)", Feature(9).String())
	assert.Equal(t, []string{"ip_mismatch", "location_deviation", "device_unknown", "browser_unknown", "time_deviation"}, FeatureNames())
}
