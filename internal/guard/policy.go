// Package guard decides whether a login may proceed and exposes the
// decision and federated-learning endpoints over HTTP.
package guard

import (
	"github.com/openidx/hijackguard/internal/challenge"
	"github.com/openidx/hijackguard/internal/profile"
	"github.com/openidx/hijackguard/internal/risk"
)

// Decision is the terminal outcome of one login evaluation
type Decision string

const (
	DecisionAllow     Decision = "ALLOW"
	DecisionChallenge Decision = "CHALLENGE"
	DecisionBlock     Decision = "BLOCK"
)

// Scorer maps a feature vector to a risk probability
type Scorer interface {
	Predict(fv risk.FeatureVector) (float64, error)
}

// Outcome is the result of Decide
type Outcome struct {
	Decision           Decision
	RiskScore          float64
	Features           risk.FeatureVector
	ChallengeQuestions []string
	AdaptiveScore      *float64
}

// Decide scores the attempt and applies the threshold rule. Below the
// threshold the login is allowed outright. At or above it, a caller without
// answers is challenged, and submitted answers are verified once: a pass
// allows, anything else blocks.
func Decide(scorer Scorer, attempt risk.LoginAttempt, p *profile.UserProfile,
	answers map[string]string, threshold float64, maxQuestions int) (*Outcome, error) {

	fv := risk.Extract(attempt, p)
	score, err := scorer.Predict(fv)
	if err != nil {
		return nil, err
	}

	out := &Outcome{RiskScore: score, Features: fv}

	if score < threshold {
		out.Decision = DecisionAllow
		return out, nil
	}

	if len(answers) == 0 {
		out.Decision = DecisionChallenge
		out.ChallengeQuestions = challenge.Build(p, maxQuestions).Questions
		return out, nil
	}

	result := challenge.Verify(p, answers)
	adaptive := result.Score
	out.AdaptiveScore = &adaptive
	if result.Success {
		out.Decision = DecisionAllow
	} else {
		out.Decision = DecisionBlock
	}
	return out, nil
}
