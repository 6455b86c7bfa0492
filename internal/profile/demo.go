package profile

import "context"

// Putter is implemented by repositories that accept provisioned profiles
type Putter interface {
	Put(ctx context.Context, p *UserProfile) error
}

// DemoProfiles returns the two reference users used in local development
func DemoProfiles() []*UserProfile {
	return []*UserProfile{
		{
			UserID:           "alice",
			TypicalIPPrefix:  "192.168",
			HomeLatitude:     37.7749,
			HomeLongitude:    -122.4194,
			KnownDevices:     []string{"device-alice-1"},
			KnownBrowsers:    []string{"Chrome", "Safari"},
			TypicalLoginHour: 9.0,
			SecurityQuestions: []SecurityQuestion{
				{Question: "What city were you born in?", Answer: "san francisco"},
				{Question: "What is the name of your first pet?", Answer: "mocha"},
			},
		},
		{
			UserID:           "bob",
			TypicalIPPrefix:  "10.0",
			HomeLatitude:     40.7128,
			HomeLongitude:    -74.0060,
			KnownDevices:     []string{"device-bob-1"},
			KnownBrowsers:    []string{"Firefox"},
			TypicalLoginHour: 20.0,
			SecurityQuestions: []SecurityQuestion{
				{Question: "What is your favorite book?", Answer: "dune"},
				{Question: "What city did you meet your spouse?", Answer: "boston"},
			},
		},
	}
}

// Seed provisions profiles into store, stopping at the first failure
func Seed(ctx context.Context, store Putter, profiles []*UserProfile) error {
	for _, p := range profiles {
		if err := store.Put(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
