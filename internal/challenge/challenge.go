// Package challenge builds and verifies knowledge-based step-up challenges
// from a user's security questions.
package challenge

import "github.com/openidx/hijackguard/internal/profile"

// PassScore is the minimum fraction of correct answers that passes
const PassScore = 0.7

// Challenge lists the prompts shown to the user. Expected answers are never
// included.
type Challenge struct {
	Questions []string `json:"questions"`
}

// Result is the outcome of verifying submitted answers
type Result struct {
	Success bool    `json:"success"`
	Score   float64 `json:"score"`
}

// Build returns up to maxQuestions questions in the profile's stored order
func Build(p *profile.UserProfile, maxQuestions int) Challenge {
	n := len(p.SecurityQuestions)
	if maxQuestions < n {
		n = maxQuestions
	}
	if n <= 0 {
		return Challenge{Questions: []string{}}
	}

	questions := make([]string, n)
	for i := 0; i < n; i++ {
		questions[i] = p.SecurityQuestions[i].Question
	}
	return Challenge{Questions: questions}
}

// Verify scores answers against the profile's sealed answers. Only
// questions the profile defines are counted, and comparison ignores case
// and surrounding whitespace.
func Verify(p *profile.UserProfile, answers map[string]string) Result {
	if len(answers) == 0 {
		return Result{}
	}

	var total, correct int
	for _, q := range p.SecurityQuestions {
		given, ok := answers[q.Question]
		if !ok {
			continue
		}
		total++
		if q.Matches(given) {
			correct++
		}
	}

	if total == 0 {
		return Result{}
	}
	score := float64(correct) / float64(total)
	return Result{Success: score >= PassScore, Score: score}
}
