package risk

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// GlobalModel owns the single shared Model. Scoring takes a read lock and
// updates take the write lock, so a prediction never observes a partially
// applied update.
type GlobalModel struct {
	mu     sync.RWMutex
	model  *Model
	store  SnapshotStore
	logger *zap.Logger
}

// NewGlobalModel wraps model. store may be nil to disable persistence.
func NewGlobalModel(model *Model, store SnapshotStore, logger *zap.Logger) *GlobalModel {
	modelBias.Set(model.bias)
	return &GlobalModel{
		model:  model,
		store:  store,
		logger: logger.With(zap.String("component", "global_model")),
	}
}

// Predict scores a feature vector against the current parameters
func (g *GlobalModel) Predict(fv FeatureVector) (float64, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.model.PredictProba(fv[:])
}

// PredictProba lets GlobalModel stand in wherever a single model scores
func (g *GlobalModel) PredictProba(features []float64) (float64, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.model.PredictProba(features)
}

// SubmitUpdate trains a copy of the global model on one labelled sample and
// averages it back in. If the result is not finite the global model is left
// untouched and ErrModelNotFinite is returned.
func (g *GlobalModel) SubmitUpdate(ctx context.Context, fv FeatureVector, label float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	local := g.model.Clone()
	if err := local.LocalUpdate(fv[:], label); err != nil {
		modelUpdates.WithLabelValues("rejected").Inc()
		return err
	}
	if !local.Finite() {
		modelUpdates.WithLabelValues("not_finite").Inc()
		return ErrModelNotFinite
	}

	next := g.model.Clone()
	if err := next.FederatedAverage([]*Model{local}); err != nil {
		modelUpdates.WithLabelValues("rejected").Inc()
		return err
	}
	if !next.Finite() {
		modelUpdates.WithLabelValues("not_finite").Inc()
		return ErrModelNotFinite
	}

	g.model = next
	modelUpdates.WithLabelValues("applied").Inc()
	modelBias.Set(next.bias)

	g.persist(ctx, next.State())
	return nil
}

// State returns a copy of the current parameters
func (g *GlobalModel) State() ModelState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.model.State()
}

// Finite reports whether the current parameters are all finite
func (g *GlobalModel) Finite() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.model.Finite()
}

// CheckFinite returns an error when the parameters are corrupted. It fits
// the health checker function signature.
func (g *GlobalModel) CheckFinite(context.Context) error {
	if !g.Finite() {
		return ErrModelNotFinite
	}
	return nil
}

// Restore replaces the parameters with the stored snapshot, if any. The
// configured learning rate is kept. It reports whether a snapshot was applied.
func (g *GlobalModel) Restore(ctx context.Context) (bool, error) {
	if g.store == nil {
		return false, nil
	}

	state, err := g.store.Load(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if state.FeatureCount != g.model.featureCount {
		return false, fmt.Errorf("%w: snapshot has %d features, model expects %d",
			ErrInvalidFeatureVector, state.FeatureCount, g.model.featureCount)
	}
	restored, err := FromState(state)
	if err != nil {
		return false, err
	}
	restored.learningRate = g.model.learningRate

	g.model = restored
	modelBias.Set(restored.bias)
	g.logger.Info("Restored model snapshot",
		zap.Float64s("weights", restored.weights),
		zap.Float64("bias", restored.bias),
	)
	return true, nil
}

func (g *GlobalModel) persist(ctx context.Context, state ModelState) {
	if g.store == nil {
		return
	}
	if err := g.store.Save(ctx, state); err != nil {
		modelUpdates.WithLabelValues("persist_failed").Inc()
		g.logger.Warn("Failed to persist model snapshot", zap.Error(err))
	}
}
