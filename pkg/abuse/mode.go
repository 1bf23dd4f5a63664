package abuse

import "time"

// Mode is the system-wide protection posture. It implements
// statemachine.State.
type Mode string

const (
	ModeNormal    Mode = "normal"
	ModeEscalated Mode = "escalated"
	ModeEmergency Mode = "emergency"
)

func (m Mode) Name() string   { return string(m) }
func (m Mode) String() string { return string(m) }

// Thresholds holds every tunable of the registration gate. The zero value is
// not usable; start from DefaultThresholds.
type Thresholds struct {
	// Per-IP attempt counting.
	Window        time.Duration `env:"ABUSE_WINDOW" envDefault:"1h"`
	CaptchaAfter  int           `env:"ABUSE_CAPTCHA_AFTER" envDefault:"3"`
	BlockAfter    int           `env:"ABUSE_BLOCK_AFTER" envDefault:"5"`
	BlockDuration time.Duration `env:"ABUSE_BLOCK_DURATION" envDefault:"1h"`

	// Suspicion score.
	ScoreHigh              float64       `env:"ABUSE_SCORE_HIGH" envDefault:"0.7"`
	ScoreMedium            float64       `env:"ABUSE_SCORE_MEDIUM" envDefault:"0.4"`
	AutomatedBlockDuration time.Duration `env:"ABUSE_AUTOMATED_BLOCK_DURATION" envDefault:"24h"`
	FailureWindow          time.Duration `env:"ABUSE_FAILURE_WINDOW" envDefault:"1h"`
	FingerprintWindow      time.Duration `env:"ABUSE_FINGERPRINT_WINDOW" envDefault:"24h"`
	TimingWindow           time.Duration `env:"ABUSE_TIMING_WINDOW" envDefault:"1h"`
	TimingSamples          int           `env:"ABUSE_TIMING_SAMPLES" envDefault:"10"`

	// Escalation, in unique IPs per VelocityWindow.
	VelocityWindow  time.Duration `env:"ABUSE_VELOCITY_WINDOW" envDefault:"1m"`
	EscalateAt      int64         `env:"ABUSE_ESCALATE_AT" envDefault:"50"`
	EmergencyAt     int64         `env:"ABUSE_EMERGENCY_AT" envDefault:"500"`
	DeescalateBelow int64         `env:"ABUSE_DEESCALATE_BELOW" envDefault:"10"`
}

// DefaultThresholds mirrors the envDefault tags.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Window:                 time.Hour,
		CaptchaAfter:           3,
		BlockAfter:             5,
		BlockDuration:          time.Hour,
		ScoreHigh:              0.7,
		ScoreMedium:            0.4,
		AutomatedBlockDuration: 24 * time.Hour,
		FailureWindow:          time.Hour,
		FingerprintWindow:      24 * time.Hour,
		TimingWindow:           time.Hour,
		TimingSamples:          10,
		VelocityWindow:         time.Minute,
		EscalateAt:             50,
		EmergencyAt:            500,
		DeescalateBelow:        10,
	}
}

// Limits are the per-IP limits in effect for one mode.
type Limits struct {
	CaptchaAfter int
	BlockAfter   int
	ForceCaptcha bool
}

// ForMode returns the per-IP limits for m. Escalated and emergency modes
// halve both thresholds (never below 1) and require CAPTCHA on every
// attempt.
func (t Thresholds) ForMode(m Mode) Limits {
	if m == ModeNormal {
		return Limits{CaptchaAfter: t.CaptchaAfter, BlockAfter: t.BlockAfter}
	}
	return Limits{
		CaptchaAfter: max(t.CaptchaAfter/2, 1),
		BlockAfter:   max(t.BlockAfter/2, 1),
		ForceCaptcha: true,
	}
}
