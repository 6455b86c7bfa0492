package risk

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

var (
	// ErrInvalidFeatureVector is returned when a vector's length or names do
	// not match the model.
	ErrInvalidFeatureVector = errors.New("invalid feature vector")

	// ErrInvalidInput is returned for non-finite features or labels
	ErrInvalidInput = errors.New("invalid input")

	// ErrModelNotFinite is returned when an update would leave NaN or Inf in
	// the parameters.
	ErrModelNotFinite = errors.New("model parameters not finite")
)

const (
	DefaultLearningRate = 0.1
	DefaultThreshold    = 0.65
)

// Model is a logistic-regression scorer trained by single-sample gradient
// steps and combined across clients by parameter averaging. A Model is not
// safe for concurrent use; GlobalModel serializes access to the shared one.
type Model struct {
	featureCount int
	learningRate float64
	weights      []float64
	bias         float64
}

// ModelState is a flat snapshot of a model's parameters
type ModelState struct {
	FeatureCount int       `json:"feature_count"`
	LearningRate float64   `json:"learning_rate"`
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
}

// NewModel returns a model with zero weights and zero bias
func NewModel(featureCount int, learningRate float64) *Model {
	return &Model{
		featureCount: featureCount,
		learningRate: learningRate,
		weights:      make([]float64, featureCount),
	}
}

// FeatureCount returns the number of inputs the model expects
func (m *Model) FeatureCount() int {
	return m.featureCount
}

// PredictProba returns sigmoid(w·x + b), a value in [0,1]
func (m *Model) PredictProba(features []float64) (float64, error) {
	if len(features) != m.featureCount {
		return 0, fmt.Errorf("%w: expected %d values, got %d", ErrInvalidFeatureVector, m.featureCount, len(features))
	}
	return sigmoid(m.logit(features)), nil
}

// LocalUpdate applies one gradient step toward label on features
func (m *Model) LocalUpdate(features []float64, label float64) error {
	if len(features) != m.featureCount {
		return fmt.Errorf("%w: expected %d values, got %d", ErrInvalidFeatureVector, m.featureCount, len(features))
	}
	if !isFinite(label) {
		return fmt.Errorf("%w: label %v", ErrInvalidInput, label)
	}
	for i, x := range features {
		if !isFinite(x) {
			return fmt.Errorf("%w: feature %d is %v", ErrInvalidInput, i, x)
		}
	}

	errTerm := sigmoid(m.logit(features)) - label
	for i, x := range features {
		m.weights[i] -= m.learningRate * errTerm * x
	}
	m.bias -= m.learningRate * errTerm
	return nil
}

// FederatedAverage replaces the parameters with the element-wise mean of
// the clients' parameters. An empty slice is a no-op.
func (m *Model) FederatedAverage(clients []*Model) error {
	if len(clients) == 0 {
		return nil
	}
	for i, c := range clients {
		if c.featureCount != m.featureCount {
			return fmt.Errorf("%w: client %d has %d features, expected %d",
				ErrInvalidFeatureVector, i, c.featureCount, m.featureCount)
		}
	}

	weights := make([]float64, m.featureCount)
	var bias float64
	for _, c := range clients {
		for i, w := range c.weights {
			weights[i] += w
		}
		bias += c.bias
	}
	n := float64(len(clients))
	for i := range weights {
		weights[i] /= n
	}

	m.weights = weights
	m.bias = bias / n
	return nil
}

// Clone returns an independent copy of the model
func (m *Model) Clone() *Model {
	return &Model{
		featureCount: m.featureCount,
		learningRate: m.learningRate,
		weights:      slices.Clone(m.weights),
		bias:         m.bias,
	}
}

// Finite reports whether every parameter is a finite number
func (m *Model) Finite() bool {
	if !isFinite(m.bias) {
		return false
	}
	for _, w := range m.weights {
		if !isFinite(w) {
			return false
		}
	}
	return true
}

// State returns a copy of the model parameters
func (m *Model) State() ModelState {
	return ModelState{
		FeatureCount: m.featureCount,
		LearningRate: m.learningRate,
		Weights:      slices.Clone(m.weights),
		Bias:         m.bias,
	}
}

// FromState rebuilds a model from a snapshot
func FromState(s ModelState) (*Model, error) {
	if s.FeatureCount <= 0 || len(s.Weights) != s.FeatureCount {
		return nil, fmt.Errorf("%w: state has %d weights for %d features",
			ErrInvalidFeatureVector, len(s.Weights), s.FeatureCount)
	}
	m := &Model{
		featureCount: s.FeatureCount,
		learningRate: s.LearningRate,
		weights:      slices.Clone(s.Weights),
		bias:         s.Bias,
	}
	if !m.Finite() {
		return nil, ErrModelNotFinite
	}
	return m, nil
}

func (m *Model) logit(features []float64) float64 {
	z := m.bias
	for i, x := range features {
		z += m.weights[i] * x
	}
	return z
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
