package feature

import "time"

// EvaluateRules evaluates an ordered rule list.
//
// Consecutive rules with the same combinator form a group. Any matching OR
// rule makes the whole list true. AND rules must all match and NOT rules
// must all fail; both count as required terms. An empty list is true. A list
// with only OR rules and no match is false.
func EvaluateRules(rules []Rule, ec EvalContext, now time.Time) bool {
	if len(rules) == 0 {
		return true
	}

	hasRequired, requiredOK := false, true
	for _, rule := range rules {
		switch rule.Combinator {
		case Or:
			if EvaluateRule(rule, ec, now) {
				return true
			}
		case Not:
			hasRequired = true
			if requiredOK && EvaluateRule(rule, ec, now) {
				requiredOK = false
			}
		default:
			hasRequired = true
			if requiredOK && !EvaluateRule(rule, ec, now) {
				requiredOK = false
			}
		}
	}
	return hasRequired && requiredOK
}
