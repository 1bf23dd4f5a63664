package feature

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dmitrymomot/flaggate/pkg/validator"
)

const (
	flagKeyPattern    = `^[a-z0-9][a-z0-9_.:-]*$`
	maxFlagKeyLen     = 128
	maxDescriptionLen = 1024
	maxPrerequisites  = 32
	maxRules          = 100
)

// ValidateFlag checks a definition submitted through the management API.
// The returned error wraps ErrInvalidFlag and validator.ValidationErrors.
func ValidateFlag(f *Flag) error {
	if f == nil {
		return errors.Join(ErrInvalidFlag, errors.New("flag is nil"))
	}

	rules := []validator.Rule{
		validator.RequiredString("key", f.Key),
		validator.MaxLenString("key", f.Key, maxFlagKeyLen),
		validator.MatchesRegex("key", f.Key, flagKeyPattern, "lowercase flag key"),
		validator.MaxLenString("description", f.Description, maxDescriptionLen),
		validator.MaxLenSlice("prerequisites", f.Prerequisites, maxPrerequisites),
		validator.MaxLenSlice("targeting_rules", f.Rules, maxRules),
		validator.Custom("prerequisites", !slices.Contains(f.Prerequisites, f.Key),
			"must not reference the flag itself", "self_reference"),
		validator.Custom("targeting_rules", !f.RulesInvalid,
			"must be a valid list of targeting rules", "targeting_rules"),
	}
	if f.Rollout != nil {
		rules = append(rules,
			validator.MinNum("rollout_percentage", *f.Rollout, 0),
			validator.MaxNum("rollout_percentage", *f.Rollout, 100),
		)
	}
	if f.CacheTTLSeconds != nil {
		rules = append(rules, validator.MinNum("cache_ttl", *f.CacheTTLSeconds, 0))
	}
	if f.StartDate != nil && f.EndDate != nil {
		rules = append(rules, validator.DateBefore("start_date", *f.StartDate, *f.EndDate))
	}
	for i, r := range f.Rules {
		err := r.Validate()
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		rules = append(rules, validator.Custom(fmt.Sprintf("targeting_rules[%d]", i), err == nil, msg, "targeting_rule"))
	}

	if err := validator.Apply(rules...); err != nil {
		return errors.Join(ErrInvalidFlag, err)
	}
	return nil
}
