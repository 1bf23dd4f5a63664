package analytics

import (
	"context"
	"time"
)

// EvaluationEvent describes one flag decision.
type EvaluationEvent struct {
	FeatureKey  string        `json:"feature_key"`
	Enabled     bool          `json:"enabled"`
	Variant     string        `json:"variant,omitempty"`
	Reason      string        `json:"reason"`
	UserID      string        `json:"user_id,omitempty"`
	Environment string        `json:"environment,omitempty"`
	FromCache   bool          `json:"from_cache"`
	Latency     time.Duration `json:"latency_ns"`
	Timestamp   time.Time     `json:"@timestamp"`
}

// RegistrationEvent describes the outcome of one registration check.
type RegistrationEvent struct {
	IP             string    `json:"ip"`
	Fingerprint    string    `json:"fingerprint,omitempty"`
	EmailDomain    string    `json:"email_domain,omitempty"`
	Allowed        bool      `json:"allowed"`
	RequireCaptcha bool      `json:"require_captcha"`
	Score          float64   `json:"score"`
	Mode           string    `json:"mode"`
	Outcome        string    `json:"outcome"`
	Timestamp      time.Time `json:"@timestamp"`
}

// Sink stores analytics events. Implementations may be slow; callers on the
// request path go through a Recorder.
type Sink interface {
	RecordEvaluation(ctx context.Context, event EvaluationEvent) error
	RecordRegistration(ctx context.Context, event RegistrationEvent) error
}
