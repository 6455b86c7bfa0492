package profile

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores input past this many bytes
const maxAnswerBytes = 72

// NormalizeAnswer folds case and trims surrounding whitespace
func NormalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SealAnswers replaces each plaintext answer with a bcrypt hash of its
// normalized form. Questions that are already sealed are left alone.
func SealAnswers(p *UserProfile) error {
	for i := range p.SecurityQuestions {
		q := &p.SecurityQuestions[i]
		if q.Answer == "" {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(NormalizeAnswer(q.Answer)), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash answer for %q: %w", q.Question, err)
		}
		q.AnswerHash = string(hash)
		q.Answer = ""
	}
	return nil
}

// Matches reports whether answer equals the sealed expected answer after
// normalization. An unsealed question never matches.
func (q SecurityQuestion) Matches(answer string) bool {
	if q.AnswerHash == "" {
		return false
	}
	given := NormalizeAnswer(answer)
	if len(given) > maxAnswerBytes {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(q.AnswerHash), []byte(given)) == nil
}
