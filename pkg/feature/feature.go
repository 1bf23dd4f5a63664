package feature

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"
	"time"
)

// CategorySystem flags are never touched by a disable-all emergency.
const CategorySystem = "system"

// Flag is a feature flag definition. Values handed out by the Store are
// clones; the engine reads shared snapshots that are never mutated.
type Flag struct {
	Key           string         `json:"key"`
	Description   string         `json:"description,omitempty"`
	Category      string         `json:"category,omitempty"`
	Enabled       bool           `json:"enabled"`
	DefaultValue  any            `json:"default_value,omitempty"`
	StartDate     *time.Time     `json:"start_date,omitempty"`
	EndDate       *time.Time     `json:"end_date,omitempty"`
	Environments  []string       `json:"environments,omitempty"`
	UserIDs       []string       `json:"user_ids,omitempty"`
	Roles         []string       `json:"roles,omitempty"`
	Prerequisites []string       `json:"prerequisites,omitempty"`
	Rules         []Rule         `json:"-"`
	Rollout       *int           `json:"rollout_percentage,omitempty"`
	Variants      map[string]any `json:"variants,omitempty"`
	// CacheTTLSeconds overrides the engine TTL; 0 disables caching for this flag.
	CacheTTLSeconds *int      `json:"cache_ttl,omitempty"`
	Tags            []string  `json:"tags,omitempty"`
	Version         int64     `json:"version,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitzero"`
	UpdatedAt       time.Time `json:"updated_at,omitzero"`

	// RawRules holds the targeting rules exactly as stored. When they cannot
	// be parsed RulesInvalid is set and Rules is empty.
	RawRules     json.RawMessage `json:"-"`
	RulesInvalid bool            `json:"-"`
}

type flagAlias Flag

// UnmarshalJSON decodes dates leniently (malformed dates become nil) and
// parses targeting_rules, flagging the definition instead of failing when
// the rules are malformed.
func (f *Flag) UnmarshalJSON(data []byte) error {
	aux := struct {
		*flagAlias
		StartDate json.RawMessage `json:"start_date"`
		EndDate   json.RawMessage `json:"end_date"`
		Rules     json.RawMessage `json:"targeting_rules"`
	}{flagAlias: (*flagAlias)(f)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	f.StartDate = parseRawTime(aux.StartDate)
	f.EndDate = parseRawTime(aux.EndDate)
	f.SetRawRules(aux.Rules)
	return nil
}

// MarshalJSON writes parsed rules as an array. Invalid rules are kept as the
// original text so a round trip does not lose them.
func (f Flag) MarshalJSON() ([]byte, error) {
	var rules any
	switch {
	case f.RulesInvalid:
		rules = string(f.RawRules)
	case len(f.Rules) > 0:
		rules = f.Rules
	}
	return json.Marshal(struct {
		flagAlias
		Rules any `json:"targeting_rules,omitempty"`
	}{flagAlias: flagAlias(f), Rules: rules})
}

// SetRawRules stores raw and parses it into Rules.
func (f *Flag) SetRawRules(raw []byte) {
	f.RawRules = slices.Clone(raw)
	rules, err := ParseRules(raw)
	if err != nil {
		f.Rules = nil
		f.RulesInvalid = true
		return
	}
	f.Rules = rules
	f.RulesInvalid = false
}

// TTL returns the cache lifetime for decisions on this flag.
func (f *Flag) TTL(fallback time.Duration) time.Duration {
	if f == nil || f.CacheTTLSeconds == nil {
		return fallback
	}
	return time.Duration(max(*f.CacheTTLSeconds, 0)) * time.Second
}

// IsSystem reports whether the flag belongs to the system category.
func (f *Flag) IsSystem() bool {
	return strings.EqualFold(f.Category, CategorySystem)
}

// Clone returns a deep copy.
func (f *Flag) Clone() *Flag {
	if f == nil {
		return nil
	}
	c := *f
	c.StartDate = cloneTime(f.StartDate)
	c.EndDate = cloneTime(f.EndDate)
	c.Environments = slices.Clone(f.Environments)
	c.UserIDs = slices.Clone(f.UserIDs)
	c.Roles = slices.Clone(f.Roles)
	c.Prerequisites = slices.Clone(f.Prerequisites)
	c.Tags = slices.Clone(f.Tags)
	c.RawRules = slices.Clone(f.RawRules)
	c.Variants = maps.Clone(f.Variants)
	if f.Rules != nil {
		c.Rules = make([]Rule, len(f.Rules))
		for i, r := range f.Rules {
			c.Rules[i] = r.clone()
		}
	}
	if f.Rollout != nil {
		v := *f.Rollout
		c.Rollout = &v
	}
	if f.CacheTTLSeconds != nil {
		v := *f.CacheTTLSeconds
		c.CacheTTLSeconds = &v
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// ParseTime parses the date formats flags are stored with. It returns nil
// for empty or malformed input.
func ParseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func parseRawTime(raw json.RawMessage) *time.Time {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return nil
	}
	return ParseTime(s)
}
