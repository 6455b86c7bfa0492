package logger

import (
	"time"

	"go.uber.org/zap"
)

// AuditEvent represents an audit log event
type AuditEvent struct {
	EventType  string                 `json:"event_type"`
	Actor      string                 `json:"actor"`  // User the event concerns
	Action     string                 `json:"action"` // What action was performed
	Resource   string                 `json:"resource"`
	ResourceID string                 `json:"resource_id,omitempty"`
	Status     string                 `json:"status"` // allowed, challenged, blocked, accepted, rejected
	Reason     string                 `json:"reason,omitempty"`
	IPAddress  string                 `json:"ip_address,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// AuditLogger writes audit events to a dedicated zap logger
type AuditLogger struct {
	logger *zap.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger.With(zap.String("log_type", "audit")),
	}
}

// Log logs an audit event
func (a *AuditLogger) Log(event *AuditEvent) {
	fields := []zap.Field{
		zap.String("event_type", event.EventType),
		zap.String("actor", event.Actor),
		zap.String("action", event.Action),
		zap.String("resource", event.Resource),
		zap.String("status", event.Status),
		zap.Time("timestamp", event.Timestamp),
	}

	if event.ResourceID != "" {
		fields = append(fields, zap.String("resource_id", event.ResourceID))
	}
	if event.Reason != "" {
		fields = append(fields, zap.String("reason", event.Reason))
	}
	if event.IPAddress != "" {
		fields = append(fields, zap.String("ip_address", event.IPAddress))
	}
	if len(event.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", event.Metadata))
	}

	switch event.Status {
	case "blocked", "rejected":
		a.logger.Warn("Audit event", fields...)
	default:
		a.logger.Info("Audit event", fields...)
	}
}

// LogLoginDecision records the outcome of one login evaluation
func (a *AuditLogger) LogLoginDecision(userID, ipAddress, decision string, riskScore float64, adaptiveScore *float64) {
	metadata := map[string]interface{}{"risk_score": riskScore}
	if adaptiveScore != nil {
		metadata["adaptive_score"] = *adaptiveScore
	}

	a.Log(&AuditEvent{
		EventType: "auth.login." + decision,
		Actor:     userID,
		Action:    "evaluate",
		Resource:  "login",
		Status:    decisionStatus(decision),
		IPAddress: ipAddress,
		Metadata:  metadata,
		Timestamp: time.Now(),
	})
}

// LogModelUpdate records a federated update submission
func (a *AuditLogger) LogModelUpdate(userID, updateID string, accepted bool, reason string) {
	status := "accepted"
	if !accepted {
		status = "rejected"
	}

	a.Log(&AuditEvent{
		EventType:  "model.update." + status,
		Actor:      userID,
		Action:     "federated_update",
		Resource:   "risk_model",
		ResourceID: updateID,
		Status:     status,
		Reason:     reason,
		Timestamp:  time.Now(),
	})
}

func decisionStatus(decision string) string {
	switch decision {
	case "allow":
		return "allowed"
	case "challenge":
		return "challenged"
	case "block":
		return "blocked"
	default:
		return decision
	}
}
