package logger

import (
	"log/slog"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// FlagKey records the feature flag key under the key "flag_key".
func FlagKey(key string) slog.Attr {
	return slog.String("flag_key", key)
}

// Reason records a decision reason code.
func Reason(reason string) slog.Attr {
	return slog.String("reason", reason)
}

// Actor records who triggered a management or emergency action.
func Actor(actor string) slog.Attr {
	return slog.String("actor", actor)
}

// IP records a client address. Empty values produce an empty Attr.
func IP(ip string) slog.Attr {
	if ip == "" {
		return slog.Attr{}
	}
	return slog.String("ip", ip)
}

// Score records a suspicion score rounded for readability.
func Score(score float64) slog.Attr {
	return slog.Float64("score", float64(int(score*1000))/1000)
}

// Mode records the abuse protection escalation mode.
func Mode(mode string) slog.Attr {
	return slog.String("mode", mode)
}

func Latency(d time.Duration) slog.Attr {
	return slog.Duration("latency", d)
}

// Event records the event name under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}
