package feature

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// RuleType selects which family of operators a Rule may use.
type RuleType string

const (
	RuleUserAttribute RuleType = "user_attribute"
	RuleDatetime      RuleType = "datetime"
	RuleGeography     RuleType = "geography"
	RuleDevice        RuleType = "device"
	RuleVersion       RuleType = "version"
	RulePercentage    RuleType = "percentage"
)

// Operator is a comparison understood by one rule type.
type Operator string

const (
	OpEquals             Operator = "equals"
	OpNotEquals          Operator = "not_equals"
	OpContains           Operator = "contains"
	OpIn                 Operator = "in"
	OpNotIn              Operator = "not_in"
	OpRegex              Operator = "regex"
	OpGreaterThan        Operator = "greater_than"
	OpGreaterThanOrEqual Operator = "greater_than_or_equal"
	OpLessThan           Operator = "less_than"
	OpLessThanOrEqual    Operator = "less_than_or_equal"

	OpBefore    Operator = "before"
	OpAfter     Operator = "after"
	OpBetween   Operator = "between"
	OpDayOfWeek Operator = "day_of_week"

	OpCountryEquals Operator = "country_equals"
	OpCountryIn     Operator = "country_in"

	OpPlatformEquals    Operator = "platform_equals"
	OpMobile            Operator = "mobile"
	OpDesktop           Operator = "desktop"
	OpUserAgentContains Operator = "user_agent_contains"

	OpVersionGreater      Operator = "version_greater"
	OpVersionGreaterEqual Operator = "version_greater_equal"
	OpVersionLess         Operator = "version_less"
	OpVersionLessEqual    Operator = "version_less_equal"
	OpVersionEquals       Operator = "version_equals"

	OpPercentageIn Operator = "percentage_in"
)

// ruleOperators is the closed set of operators per rule type.
var ruleOperators = map[RuleType][]Operator{
	RuleUserAttribute: {
		OpEquals, OpNotEquals, OpContains, OpIn, OpNotIn, OpRegex,
		OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual,
	},
	RuleDatetime:   {OpBefore, OpAfter, OpBetween, OpDayOfWeek},
	RuleGeography:  {OpCountryEquals, OpCountryIn},
	RuleDevice:     {OpPlatformEquals, OpMobile, OpDesktop, OpUserAgentContains},
	RuleVersion:    {OpVersionGreater, OpVersionGreaterEqual, OpVersionLess, OpVersionLessEqual, OpVersionEquals},
	RulePercentage: {OpPercentageIn},
}

// Combinator says how a rule joins the rules before it.
type Combinator string

const (
	And Combinator = "AND"
	Or  Combinator = "OR"
	Not Combinator = "NOT"
)

// Rule is one targeting predicate. Attribute is only used by user_attribute
// rules. List operators read Values, falling back to Value when it is a list.
type Rule struct {
	Type       RuleType   `json:"type"`
	Operator   Operator   `json:"operator"`
	Attribute  string     `json:"attribute,omitempty"`
	Value      any        `json:"value,omitempty"`
	Values     []any      `json:"values,omitempty"`
	Combinator Combinator `json:"combinator,omitempty"`
}

// Validate rejects operators that do not belong to the rule type.
func (r Rule) Validate() error {
	ops, ok := ruleOperators[r.Type]
	if !ok {
		return fmt.Errorf("%w: unknown rule type %q", ErrInvalidRule, r.Type)
	}
	if !slices.Contains(ops, r.Operator) {
		return fmt.Errorf("%w: operator %q is not valid for %s rules", ErrInvalidRule, r.Operator, r.Type)
	}
	switch r.Combinator {
	case "", And, Or, Not:
	default:
		return fmt.Errorf("%w: unknown combinator %q", ErrInvalidRule, r.Combinator)
	}

	switch r.Type {
	case RuleUserAttribute:
		if r.Attribute == "" {
			return fmt.Errorf("%w: user_attribute rule requires an attribute", ErrInvalidRule)
		}
	case RulePercentage:
		p, ok := toFloat(r.Value)
		if !ok || p < 0 || p > 100 {
			return fmt.Errorf("%w: percentage must be a number in [0,100]", ErrInvalidRule)
		}
	case RuleVersion:
		if _, ok := r.Value.(string); !ok {
			return fmt.Errorf("%w: version rule requires a string value", ErrInvalidRule)
		}
	}
	return nil
}

// UnmarshalJSON normalises the combinator and validates the rule.
func (r *Rule) UnmarshalJSON(data []byte) error {
	type ruleAlias Rule
	var aux ruleAlias
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&aux); err != nil {
		return errors.Join(ErrInvalidRule, err)
	}

	aux.Type = RuleType(strings.ToLower(strings.TrimSpace(string(aux.Type))))
	aux.Operator = Operator(strings.ToLower(strings.TrimSpace(string(aux.Operator))))
	aux.Combinator = Combinator(strings.ToUpper(strings.TrimSpace(string(aux.Combinator))))
	if aux.Combinator == "" {
		aux.Combinator = And
	}

	rule := Rule(aux)
	if err := rule.Validate(); err != nil {
		return err
	}
	*r = rule
	return nil
}

// list returns the operand list of a membership operator.
func (r Rule) list() []any {
	if len(r.Values) > 0 {
		return r.Values
	}
	return toList(r.Value)
}

func (r Rule) clone() Rule {
	c := r
	c.Values = slices.Clone(r.Values)
	if m, ok := r.Value.(map[string]any); ok {
		c.Value = maps.Clone(m)
	}
	return c
}

// ParseRules decodes a targeting rule list. It accepts a JSON array or a
// JSON string holding an array, which is how rules are stored as text.
// Empty input and null mean no rules.
func ParseRules(raw []byte) ([]Rule, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, errors.Join(ErrConfiguration, err)
		}
		raw = bytes.TrimSpace([]byte(text))
		if len(raw) == 0 {
			return nil, nil
		}
	}

	var rules []Rule
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, errors.Join(ErrConfiguration, err)
	}
	return rules, nil
}
