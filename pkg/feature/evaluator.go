package feature

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/dmitrymomot/flaggate/pkg/useragent"
)

// EvaluateRule evaluates one rule against ec at instant now. Missing or
// mistyped context values make the rule false; it never panics.
func EvaluateRule(rule Rule, ec EvalContext, now time.Time) (matched bool) {
	defer func() {
		if recover() != nil {
			matched = false
		}
	}()

	switch rule.Type {
	case RuleUserAttribute:
		actual, ok := ec[rule.Attribute]
		if !ok || actual == nil {
			return false
		}
		return compare(rule, actual)
	case RuleDatetime:
		return evaluateDatetime(rule, now)
	case RuleGeography:
		return evaluateGeography(rule, ec)
	case RuleDevice:
		return evaluateDevice(rule, ec)
	case RuleVersion:
		return evaluateVersion(rule, ec)
	case RulePercentage:
		return evaluatePercentage(rule, ec)
	}
	return false
}

func compare(rule Rule, actual any) bool {
	switch rule.Operator {
	case OpEquals:
		return equalValues(actual, rule.Value)
	case OpNotEquals:
		return !equalValues(actual, rule.Value)
	case OpContains:
		if s, ok := actual.(string); ok {
			sub, ok := rule.Value.(string)
			return ok && strings.Contains(s, sub)
		}
		return slices.ContainsFunc(toList(actual), func(item any) bool {
			return equalValues(item, rule.Value)
		})
	case OpIn:
		return inList(actual, rule.list())
	case OpNotIn:
		return !inList(actual, rule.list())
	case OpRegex:
		s, ok := actual.(string)
		pattern, pok := rule.Value.(string)
		if !ok || !pok {
			return false
		}
		re, err := regexp.Compile(pattern)
		return err == nil && re.MatchString(s)
	case OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		a, aok := toFloat(actual)
		b, bok := toFloat(rule.Value)
		if !aok || !bok {
			return false
		}
		switch rule.Operator {
		case OpGreaterThan:
			return a > b
		case OpGreaterThanOrEqual:
			return a >= b
		case OpLessThan:
			return a < b
		default:
			return a <= b
		}
	}
	return false
}

// inList reports membership; a list-valued actual matches when any element
// is a member. An empty list never matches.
func inList(actual any, list []any) bool {
	if len(list) == 0 {
		return false
	}
	member := func(v any) bool {
		return slices.ContainsFunc(list, func(item any) bool { return equalValues(v, item) })
	}
	if _, isString := actual.(string); !isString {
		if items := toList(actual); items != nil {
			return slices.ContainsFunc(items, member)
		}
	}
	return member(actual)
}

func evaluateDatetime(rule Rule, now time.Time) bool {
	switch rule.Operator {
	case OpBefore:
		t := timeValue(rule.Value)
		return t != nil && now.Before(*t)
	case OpAfter:
		t := timeValue(rule.Value)
		return t != nil && now.After(*t)
	case OpBetween:
		bounds := rule.list()
		if len(bounds) != 2 {
			return false
		}
		start, end := timeValue(bounds[0]), timeValue(bounds[1])
		return start != nil && end != nil && !now.Before(*start) && !now.After(*end)
	case OpDayOfWeek:
		days := rule.list()
		if days == nil && rule.Value != nil {
			days = []any{rule.Value}
		}
		today := now.UTC().Weekday()
		return slices.ContainsFunc(days, func(d any) bool {
			wd, ok := weekday(d)
			return ok && wd == today
		})
	}
	return false
}

func evaluateGeography(rule Rule, ec EvalContext) bool {
	country, ok := ec.String(CtxCountry)
	if !ok {
		return false
	}
	switch rule.Operator {
	case OpCountryEquals:
		want, ok := rule.Value.(string)
		return ok && strings.EqualFold(country, want)
	case OpCountryIn:
		return slices.ContainsFunc(rule.list(), func(item any) bool {
			s, ok := item.(string)
			return ok && strings.EqualFold(country, s)
		})
	}
	return false
}

func evaluateDevice(rule Rule, ec EvalContext) bool {
	ua, _ := ec.String(CtxUserAgent)

	switch rule.Operator {
	case OpPlatformEquals:
		want, ok := rule.Value.(string)
		if !ok {
			return false
		}
		platform, ok := ec.String(CtxPlatform)
		if !ok {
			if ua == "" {
				return false
			}
			platform = useragent.ParseOS(strings.ToLower(ua))
		}
		return strings.EqualFold(platform, want)
	case OpMobile, OpDesktop:
		deviceType, ok := ec.String(CtxDeviceType)
		if !ok {
			if ua == "" {
				return false
			}
			deviceType = useragent.ParseDeviceType(strings.ToLower(ua))
		}
		deviceType = strings.ToLower(deviceType)

		var is bool
		if rule.Operator == OpMobile {
			is = deviceType == useragent.DeviceTypeMobile || deviceType == useragent.DeviceTypeTablet
		} else {
			is = deviceType == useragent.DeviceTypeDesktop
		}
		if want, ok := rule.Value.(bool); ok {
			return is == want
		}
		return is
	case OpUserAgentContains:
		sub, ok := rule.Value.(string)
		return ok && ua != "" && sub != "" && strings.Contains(strings.ToLower(ua), strings.ToLower(sub))
	}
	return false
}

func evaluateVersion(rule Rule, ec EvalContext) bool {
	actual, ok := ec.String(CtxAppVersion)
	if !ok {
		if actual, ok = ec.String(CtxVersion); !ok {
			return false
		}
	}
	want, ok := rule.Value.(string)
	if !ok {
		return false
	}
	cmp, ok := CompareVersions(actual, want)
	if !ok {
		return false
	}
	switch rule.Operator {
	case OpVersionGreater:
		return cmp > 0
	case OpVersionGreaterEqual:
		return cmp >= 0
	case OpVersionLess:
		return cmp < 0
	case OpVersionLessEqual:
		return cmp <= 0
	case OpVersionEquals:
		return cmp == 0
	}
	return false
}

func evaluatePercentage(rule Rule, ec EvalContext) bool {
	p, ok := toFloat(rule.Value)
	if !ok {
		return false
	}
	key, ok := ec.String(CtxFeatureKey)
	if !ok {
		return false
	}
	return InRollout(key, ec.Subject(), int(p))
}

func timeValue(v any) *time.Time {
	switch t := v.(type) {
	case time.Time:
		return &t
	case *time.Time:
		return t
	case string:
		return ParseTime(t)
	}
	return nil
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// weekday accepts 0..6 (Sunday first) or an English day name.
func weekday(v any) (time.Weekday, bool) {
	if s, ok := v.(string); ok {
		if wd, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]; ok {
			return wd, true
		}
	}
	n, ok := toFloat(v)
	if !ok || n < 0 || n > 6 || n != float64(int(n)) {
		return 0, false
	}
	return time.Weekday(int(n)), true
}
