package profile

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_PutGet(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, Seed(ctx, repo, DemoProfiles()))
	assert.Equal(t, 2, repo.Len())

	alice, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "192.168", alice.TypicalIPPrefix)
	assert.True(t, alice.KnowsDevice("device-alice-1"))
	assert.True(t, alice.KnowsBrowser("Safari"))
	assert.False(t, alice.KnowsBrowser("Firefox"))
	require.Len(t, alice.SecurityQuestions, 2)
	assert.Equal(t, "What city were you born in?", alice.SecurityQuestions[0].Question)
}

func TestMemoryRepository_NotFound(t *testing.T) {
	repo := NewMemoryRepository()

	_, err := repo.Get(context.Background(), "mallory")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, Seed(ctx, repo, DemoProfiles()))

	first, err := repo.Get(ctx, "bob")
	require.NoError(t, err)
	first.KnownDevices[0] = "tampered"
	first.SecurityQuestions[0].AnswerHash = "tampered"

	second, err := repo.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "device-bob-1", second.KnownDevices[0])
	assert.True(t, second.SecurityQuestions[0].Matches("dune"))
}

func TestMemoryRepository_StoresOnlyHashes(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	input := DemoProfiles()[1]
	require.NoError(t, repo.Put(ctx, input))

	// the caller's profile is not modified
	assert.Equal(t, "dune", input.SecurityQuestions[0].Answer)

	bob, err := repo.Get(ctx, "bob")
	require.NoError(t, err)
	for _, q := range bob.SecurityQuestions {
		assert.Empty(t, q.Answer)
		assert.True(t, strings.HasPrefix(q.AnswerHash, "$2a$"), q.AnswerHash)
	}
	assert.True(t, bob.SecurityQuestions[0].Matches(" Dune "))
	assert.False(t, bob.SecurityQuestions[0].Matches("Foundation"))
}

func TestMemoryRepository_RejectsInvalid(t *testing.T) {
	repo := NewMemoryRepository()
	base := DemoProfiles()[0]

	tests := []struct {
		name   string
		mutate func(p *UserProfile)
	}{
		{"missing user id", func(p *UserProfile) { p.UserID = "" }},
		{"latitude out of range", func(p *UserProfile) { p.HomeLatitude = 91 }},
		{"longitude out of range", func(p *UserProfile) { p.HomeLongitude = -181 }},
		{"hour too large", func(p *UserProfile) { p.TypicalLoginHour = 24 }},
		{"negative hour", func(p *UserProfile) { p.TypicalLoginHour = -1 }},
		{"question without answer", func(p *UserProfile) { p.SecurityQuestions[0].Answer = "" }},
		{"answer too long", func(p *UserProfile) { p.SecurityQuestions[0].Answer = strings.Repeat("x", 73) }},
		{"duplicate question", func(p *UserProfile) {
			p.SecurityQuestions = append(p.SecurityQuestions, p.SecurityQuestions[0])
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base.Clone()
			tt.mutate(p)
			err := repo.Put(context.Background(), p)
			assert.ErrorIs(t, err, ErrInvalidProfile)
		})
	}
	assert.Equal(t, 0, repo.Len())
}
