package feature

import "time"

// Reason explains how a Decision was reached.
type Reason string

const (
	ReasonDisabled            Reason = "disabled"
	ReasonNotStarted          Reason = "not_started"
	ReasonExpired             Reason = "expired"
	ReasonPrerequisitesNotMet Reason = "prerequisites_not_met"
	ReasonUserOverride        Reason = "user_override"
	ReasonRoleMatch           Reason = "role_match"
	ReasonTargeting           Reason = "targeting"
	ReasonRolloutExcluded     Reason = "rollout_excluded"
	ReasonDefault             Reason = "default"
	ReasonCircuitOpen         Reason = "circuit_open"
)

func (r Reason) String() string { return string(r) }

// Decision is the immutable result of one evaluation.
type Decision struct {
	Key         string        `json:"key"`
	Value       any           `json:"value"`
	Enabled     bool          `json:"enabled"`
	Variant     string        `json:"variant,omitempty"`
	Reason      Reason        `json:"reason"`
	Latency     time.Duration `json:"latency_ns"`
	CacheHit    bool          `json:"cache_hit"`
	EvaluatedAt time.Time     `json:"evaluated_at"`
}

func off(key string, reason Reason) Decision {
	return Decision{Key: key, Value: false, Enabled: false, Reason: reason}
}

func on(key string, reason Reason) Decision {
	return Decision{Key: key, Value: true, Enabled: true, Reason: reason}
}

// truthy maps a flag value to the boolean "is the feature on" view.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "false" && t != "0" && t != "off"
	default:
		if f, ok := toFloat(v); ok {
			return f != 0
		}
		return true
	}
}
