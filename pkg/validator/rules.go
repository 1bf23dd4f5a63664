package validator

import (
	"fmt"
	"net/mail"
	"net/netip"
	"regexp"
	"strings"
	"sync"
	"time"
)

func rule(field, code string, check func() bool, format string, args ...any) Rule {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return Rule{Check: check, Error: ValidationError{Field: field, Code: code, Message: msg}}
}

// Custom turns a condition computed by the caller into a Rule.
func Custom(field string, ok bool, message, code string) Rule {
	return rule(field, code, func() bool { return ok }, message)
}

// RequiredString fails on empty or whitespace-only values.
func RequiredString(field, value string) Rule {
	return rule(field, "required", func() bool { return strings.TrimSpace(value) != "" },
		"field is required")
}

// MaxLenString counts bytes, not runes.
func MaxLenString(field, value string, max int) Rule {
	return rule(field, "max_length", func() bool { return len(value) <= max },
		"must be at most %d characters long", max)
}

var patterns sync.Map // string -> *regexp.Regexp

// MatchesRegex checks value against pattern, which is compiled once per
// process. A bad pattern panics. Blank values never match.
func MatchesRegex(field, value, pattern, description string) Rule {
	re, ok := patterns.Load(pattern)
	if !ok {
		re, _ = patterns.LoadOrStore(pattern, regexp.MustCompile(pattern))
	}
	return rule(field, "pattern", func() bool {
		return strings.TrimSpace(value) != "" && re.(*regexp.Regexp).MatchString(value)
	}, "must match %s pattern", description)
}

func RequiredSlice[T any](field string, value []T) Rule {
	return rule(field, "required", func() bool { return len(value) > 0 }, "field is required")
}

func MaxLenSlice[T any](field string, value []T, max int) Rule {
	return rule(field, "max_items", func() bool { return len(value) <= max },
		"must have at most %d items", max)
}

func MinNum[T Numeric](field string, value, min T) Rule {
	return rule(field, "min", func() bool { return value >= min }, "must be at least %v", min)
}

func MaxNum[T Numeric](field string, value, max T) Rule {
	return rule(field, "max", func() bool { return value <= max }, "must be at most %v", max)
}

// DateBefore requires value to be strictly earlier than limit.
func DateBefore(field string, value, limit time.Time) Rule {
	return rule(field, "date_before", func() bool { return value.Before(limit) },
		"date must be before %s", limit.UTC().Format(time.RFC3339))
}

// ValidEmail accepts a bare address whose domain has at least two non-empty
// labels. Display names are rejected.
func ValidEmail(field, value string) Rule {
	return rule(field, "email", func() bool {
		v := strings.TrimSpace(value)
		addr, err := mail.ParseAddress(v)
		if v == "" || err != nil || addr.Address != v {
			return false
		}
		local, domain, _ := strings.Cut(v, "@")
		if local == "" || !strings.Contains(domain, ".") {
			return false
		}
		for label := range strings.SplitSeq(domain, ".") {
			if label == "" {
				return false
			}
		}
		return true
	}, "must be a valid email address")
}

func ValidIP(field, value string) Rule {
	return rule(field, "ip", func() bool {
		_, err := netip.ParseAddr(strings.TrimSpace(value))
		return err == nil
	}, "must be a valid IP address")
}
