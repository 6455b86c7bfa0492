// Package profile holds per-user behavioral baselines used to score logins
// and the repositories that serve them.
package profile

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
)

var (
	// ErrNotFound is returned when no profile exists for a user
	ErrNotFound = errors.New("profile not found")

	// ErrInvalidProfile is returned when a profile violates its invariants
	ErrInvalidProfile = errors.New("invalid profile")
)

// SecurityQuestion is one knowledge-challenge prompt and its expected answer.
// Answer carries plaintext only on the way into a repository; stored
// profiles hold AnswerHash instead.
type SecurityQuestion struct {
	Question   string `json:"question"`
	Answer     string `json:"answer,omitempty"`
	AnswerHash string `json:"answer_hash,omitempty"` // bcrypt of NormalizeAnswer(Answer)
}

// UserProfile is the historical baseline for one user. It is created at
// provisioning time and is read-only while scoring.
type UserProfile struct {
	UserID           string   `json:"user_id"`
	TypicalIPPrefix  string   `json:"typical_ip_prefix"` // first two octets, e.g. "192.168"
	HomeLatitude     float64  `json:"home_lat"`
	HomeLongitude    float64  `json:"home_lon"`
	KnownDevices     []string `json:"known_devices"`
	KnownBrowsers    []string `json:"known_browsers"`
	TypicalLoginHour float64  `json:"typical_login_hour"` // fractional hour in [0,24)

	// Stored order is significant: challenges draw questions in this order.
	SecurityQuestions []SecurityQuestion `json:"security_questions"`
}

// Repository looks up profiles by user ID
type Repository interface {
	// Get returns the profile for userID or an error wrapping ErrNotFound.
	Get(ctx context.Context, userID string) (*UserProfile, error)
}

// Validate checks the profile invariants
func (p *UserProfile) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidProfile)
	}
	if !finite(p.HomeLatitude) || p.HomeLatitude < -90 || p.HomeLatitude > 90 {
		return fmt.Errorf("%w: home latitude %v out of range", ErrInvalidProfile, p.HomeLatitude)
	}
	if !finite(p.HomeLongitude) || p.HomeLongitude < -180 || p.HomeLongitude > 180 {
		return fmt.Errorf("%w: home longitude %v out of range", ErrInvalidProfile, p.HomeLongitude)
	}
	if !finite(p.TypicalLoginHour) || p.TypicalLoginHour < 0 || p.TypicalLoginHour >= 24 {
		return fmt.Errorf("%w: typical login hour %v not in [0,24)", ErrInvalidProfile, p.TypicalLoginHour)
	}

	seen := make(map[string]struct{}, len(p.SecurityQuestions))
	for _, q := range p.SecurityQuestions {
		if q.Question == "" {
			return fmt.Errorf("%w: empty security question", ErrInvalidProfile)
		}
		if q.Answer == "" && q.AnswerHash == "" {
			return fmt.Errorf("%w: security question %q has no answer", ErrInvalidProfile, q.Question)
		}
		if len(NormalizeAnswer(q.Answer)) > maxAnswerBytes {
			return fmt.Errorf("%w: answer to %q exceeds %d bytes", ErrInvalidProfile, q.Question, maxAnswerBytes)
		}
		if _, dup := seen[q.Question]; dup {
			return fmt.Errorf("%w: duplicate security question %q", ErrInvalidProfile, q.Question)
		}
		seen[q.Question] = struct{}{}
	}
	return nil
}

// KnowsDevice reports whether deviceID is one of the user's known devices
func (p *UserProfile) KnowsDevice(deviceID string) bool {
	return slices.Contains(p.KnownDevices, deviceID)
}

// KnowsBrowser reports whether browser is one of the user's known browsers
func (p *UserProfile) KnowsBrowser(browser string) bool {
	return slices.Contains(p.KnownBrowsers, browser)
}

// Clone returns a deep copy so callers cannot mutate a repository's state
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	c.KnownDevices = slices.Clone(p.KnownDevices)
	c.KnownBrowsers = slices.Clone(p.KnownBrowsers)
	c.SecurityQuestions = slices.Clone(p.SecurityQuestions)
	return &c
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
