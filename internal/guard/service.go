package guard

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	apperrors "github.com/openidx/hijackguard/internal/common/errors"
	"github.com/openidx/hijackguard/internal/common/logger"
	"github.com/openidx/hijackguard/internal/common/tracing"
	"github.com/openidx/hijackguard/internal/common/validation"
	"github.com/openidx/hijackguard/internal/profile"
	"github.com/openidx/hijackguard/internal/risk"
)

// Config holds the decision parameters
type Config struct {
	Threshold             float64
	MaxChallengeQuestions int
}

// DefaultConfig returns the stock decision parameters
func DefaultConfig() Config {
	return Config{
		Threshold:             risk.DefaultThreshold,
		MaxChallengeQuestions: 2,
	}
}

// LoginRequest is one login attempt submitted for evaluation
type LoginRequest struct {
	UserID    string            `json:"user_id"`
	IPAddress string            `json:"ip_address"`
	Latitude  float64           `json:"latitude"`
	Longitude float64           `json:"longitude"`
	DeviceID  string            `json:"device_id"`
	Browser   string            `json:"browser"`
	LoginTime time.Time         `json:"login_time"`
	Answers   map[string]string `json:"answers,omitempty"`
}

// LoginResponse reports the decision for a LoginRequest
type LoginResponse struct {
	Decision           Decision           `json:"decision"`
	RiskScore          float64            `json:"risk_score"`
	Features           risk.FeatureVector `json:"features"`
	ChallengeQuestions []string           `json:"challenge_questions,omitempty"`
	AdaptiveScore      *float64           `json:"adaptive_score,omitempty"`
}

// FederatedUpdateRequest is one labelled sample contributed by a client
type FederatedUpdateRequest struct {
	UserID   string             `json:"user_id"`
	Features map[string]float64 `json:"features"`
	Label    *float64           `json:"label"`
}

// UpdateAck acknowledges an applied federated update
type UpdateAck struct {
	Status   string `json:"status"`
	UpdateID string `json:"update_id"`
}

// ModelView is the operator view of the global model
type ModelView struct {
	FeatureNames []string  `json:"feature_names"`
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
	LearningRate float64   `json:"learning_rate"`
	Threshold    float64   `json:"threshold"`
}

// Service evaluates logins and accepts federated model updates
type Service struct {
	profiles profile.Repository
	model    *risk.GlobalModel
	config   Config
	audit    *logger.AuditLogger
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a guard service
func NewService(profiles profile.Repository, model *risk.GlobalModel, config Config, log *zap.Logger) *Service {
	log = log.With(zap.String("component", "guard"))
	return &Service{
		profiles: profiles,
		model:    model,
		config:   config,
		audit:    logger.NewAuditLogger(log),
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source used for requests without a login time
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// EvaluateLogin scores a login attempt and returns ALLOW, CHALLENGE or BLOCK.
// Unknown users and malformed input are returned as errors, never as BLOCK.
func (s *Service) EvaluateLogin(ctx context.Context, req LoginRequest) (resp *LoginResponse, err error) {
	ctx, span := tracing.StartSpan(ctx, "guard.EvaluateLogin", tracing.UserID(req.UserID))
	defer endSpan(span, &err)

	if err := validateLogin(req); err != nil {
		return nil, err
	}

	p, err := s.lookupProfile(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	ts := req.LoginTime
	if ts.IsZero() {
		ts = s.now()
	}

	attempt := risk.LoginAttempt{
		UserID:    req.UserID,
		IPAddress: req.IPAddress,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		DeviceID:  req.DeviceID,
		Browser:   req.Browser,
		Timestamp: ts,
	}

	out, err := Decide(s.model, attempt, p, req.Answers, s.config.Threshold, s.config.MaxChallengeQuestions)
	if err != nil {
		return nil, apperrors.Internal("Failed to score login", err)
	}

	loginDecisions.WithLabelValues(string(out.Decision)).Inc()
	riskScores.Observe(out.RiskScore)
	span.SetAttributes(tracing.Decision(string(out.Decision)), tracing.RiskScore(out.RiskScore))

	s.audit.LogLoginDecision(req.UserID, req.IPAddress, strings.ToLower(string(out.Decision)), out.RiskScore, out.AdaptiveScore)
	logger.WithTraceContext(s.logger, ctx).Debug("Login evaluated",
		zap.String("user_id", req.UserID),
		zap.String("decision", string(out.Decision)),
		zap.Float64("risk_score", out.RiskScore),
		zap.Float64s("features", out.Features.Slice()),
	)

	return &LoginResponse{
		Decision:           out.Decision,
		RiskScore:          out.RiskScore,
		Features:           out.Features,
		ChallengeQuestions: out.ChallengeQuestions,
		AdaptiveScore:      out.AdaptiveScore,
	}, nil
}

// SubmitFederatedUpdate folds one labelled sample into the global model
func (s *Service) SubmitFederatedUpdate(ctx context.Context, req FederatedUpdateRequest) (ack *UpdateAck, err error) {
	ctx, span := tracing.StartSpan(ctx, "guard.SubmitFederatedUpdate", tracing.UserID(req.UserID))
	defer endSpan(span, &err)

	if req.UserID == "" {
		return nil, apperrors.InvalidInput("user_id", "user_id is required")
	}
	if _, err := s.lookupProfile(ctx, req.UserID); err != nil {
		return nil, err
	}

	fv, err := risk.FeatureVectorFromMap(req.Features)
	if err != nil {
		s.audit.LogModelUpdate(req.UserID, "", false, "invalid feature vector")
		return nil, apperrors.InvalidFeatureVector(err.Error(), err)
	}
	if err := validateSample(fv, req.Label); err != nil {
		s.audit.LogModelUpdate(req.UserID, "", false, err.Error())
		return nil, err
	}
	label := *req.Label

	updateID := uuid.New().String()
	if err := s.model.SubmitUpdate(ctx, fv, label); err != nil {
		s.audit.LogModelUpdate(req.UserID, updateID, false, err.Error())
		switch {
		case errors.Is(err, risk.ErrModelNotFinite):
			return nil, apperrors.ModelCorrupted(err)
		case errors.Is(err, risk.ErrInvalidInput):
			return nil, apperrors.InvalidInput("features", err.Error())
		case errors.Is(err, risk.ErrInvalidFeatureVector):
			return nil, apperrors.InvalidFeatureVector(err.Error(), err)
		default:
			return nil, apperrors.Internal("Failed to apply model update", err)
		}
	}

	s.audit.LogModelUpdate(req.UserID, updateID, true, "")
	return &UpdateAck{Status: "updated", UpdateID: updateID}, nil
}

// ModelSnapshot returns the current global parameters
func (s *Service) ModelSnapshot(_ context.Context) *ModelView {
	state := s.model.State()
	return &ModelView{
		FeatureNames: risk.FeatureNames(),
		Weights:      state.Weights,
		Bias:         state.Bias,
		LearningRate: state.LearningRate,
		Threshold:    s.config.Threshold,
	}
}

func (s *Service) lookupProfile(ctx context.Context, userID string) (*profile.UserProfile, error) {
	p, err := s.profiles.Get(ctx, userID)
	if err == nil {
		return p, nil
	}
	if errors.Is(err, profile.ErrNotFound) {
		return nil, apperrors.UnknownUser(userID)
	}
	s.logger.Error("Profile lookup failed", zap.String("user_id", userID), zap.Error(err))
	return nil, apperrors.Internal("Failed to load user profile", err)
}

func validateLogin(req LoginRequest) error {
	return invalidInput(validation.ValidateAll(
		func() error { return validation.ValidateRequired("user_id", req.UserID) },
		func() error { return validation.ValidateRequired("ip_address", req.IPAddress) },
		func() error { return validation.ValidateRequired("device_id", req.DeviceID) },
		func() error { return validation.ValidateRequired("browser", req.Browser) },
		func() error { return validation.ValidateLatitude("latitude", req.Latitude) },
		func() error { return validation.ValidateLongitude("longitude", req.Longitude) },
	))
}

func validateSample(fv risk.FeatureVector, label *float64) error {
	validators := make([]func() error, 0, risk.NumFeatures+1)
	for i, v := range fv {
		name, v := "features."+risk.Feature(i).String(), v
		validators = append(validators, func() error { return validation.ValidateUnitInterval(name, v) })
	}
	validators = append(validators, func() error {
		if label == nil {
			return &validation.ValidationError{Field: "label", Message: "is required"}
		}
		return validation.ValidateUnitInterval("label", *label)
	})
	return invalidInput(validation.ValidateAll(validators...))
}

// invalidInput converts collected validation errors into an INVALID_INPUT
// AppError naming the first offending field.
func invalidInput(err error) error {
	var verrs *validation.ValidationErrors
	if !errors.As(err, &verrs) || !verrs.HasErrors() {
		return nil
	}
	return apperrors.InvalidInput(verrs.First().Field, verrs.Error())
}

func endSpan(span trace.Span, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}
