package feature_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flaggate/pkg/feature"
)

// Tuesday.
var ruleNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestEvaluateRule(t *testing.T) {
	t.Parallel()

	attr := func(op feature.Operator, attribute string, value any, values ...any) feature.Rule {
		return feature.Rule{Type: feature.RuleUserAttribute, Operator: op, Attribute: attribute, Value: value, Values: values}
	}

	tests := []struct {
		name string
		rule feature.Rule
		ec   feature.EvalContext
		want bool
	}{
		{"equals", attr(feature.OpEquals, "plan", "premium"), feature.EvalContext{"plan": "premium"}, true},
		{"equals mismatch", attr(feature.OpEquals, "plan", "premium"), feature.EvalContext{"plan": "free"}, false},
		{"equals wrong type", attr(feature.OpEquals, "plan", "premium"), feature.EvalContext{"plan": 5}, false},
		{"equals numbers across types", attr(feature.OpEquals, "seats", 5), feature.EvalContext{"seats": 5.0}, true},
		{"missing attribute", attr(feature.OpEquals, "plan", "premium"), feature.EvalContext{}, false},
		{"nil attribute", attr(feature.OpNotEquals, "plan", "premium"), feature.EvalContext{"plan": nil}, false},
		{"contains substring", attr(feature.OpContains, "email", "@acme."), feature.EvalContext{"email": "jo@acme.io"}, true},
		{"contains slice member", attr(feature.OpContains, "tags", "beta"), feature.EvalContext{"tags": []string{"alpha", "beta"}}, true},
		{"contains slice miss", attr(feature.OpContains, "tags", "gamma"), feature.EvalContext{"tags": []string{"alpha", "beta"}}, false},
		{"in list", attr(feature.OpIn, "plan", nil, "pro", "premium"), feature.EvalContext{"plan": "premium"}, true},
		{"in empty list", attr(feature.OpIn, "plan", nil), feature.EvalContext{"plan": "premium"}, false},
		{"in list from value", attr(feature.OpIn, "plan", []any{"pro", "premium"}), feature.EvalContext{"plan": "pro"}, true},
		{"not in list", attr(feature.OpNotIn, "plan", nil, "free"), feature.EvalContext{"plan": "premium"}, true},
		{"regex match", attr(feature.OpRegex, "email", `@acme\.(io|com)$`), feature.EvalContext{"email": "jo@acme.io"}, true},
		{"invalid regex", attr(feature.OpRegex, "email", `(`), feature.EvalContext{"email": "jo@acme.io"}, false},
		{"regex on number", attr(feature.OpRegex, "age", `\d+`), feature.EvalContext{"age": 30}, false},
		{"greater than", attr(feature.OpGreaterThan, "age", 18), feature.EvalContext{"age": 30}, true},
		{"greater than numeric string", attr(feature.OpGreaterThan, "age", 18), feature.EvalContext{"age": "30"}, true},
		{"greater than non numeric", attr(feature.OpGreaterThan, "age", 18), feature.EvalContext{"age": "thirty"}, false},
		{"less than or equal", attr(feature.OpLessThanOrEqual, "age", 30), feature.EvalContext{"age": 30}, true},
		{"greater than or equal", attr(feature.OpGreaterThanOrEqual, "age", 31), feature.EvalContext{"age": 30}, false},

		{"before", feature.Rule{Type: feature.RuleDatetime, Operator: feature.OpBefore, Value: "2026-04-01"}, nil, true},
		{"after", feature.Rule{Type: feature.RuleDatetime, Operator: feature.OpAfter, Value: "2026-04-01T00:00:00Z"}, nil, false},
		{"between", feature.Rule{Type: feature.RuleDatetime, Operator: feature.OpBetween, Values: []any{"2026-03-01", "2026-03-31"}}, nil, true},
		{"between malformed bound", feature.Rule{Type: feature.RuleDatetime, Operator: feature.OpBetween, Values: []any{"soon", "2026-03-31"}}, nil, false},
		{"day of week name", feature.Rule{Type: feature.RuleDatetime, Operator: feature.OpDayOfWeek, Values: []any{"tuesday", "friday"}}, nil, true},
		{"day of week number", feature.Rule{Type: feature.RuleDatetime, Operator: feature.OpDayOfWeek, Value: 1}, nil, false},

		{"country equals ignores case", feature.Rule{Type: feature.RuleGeography, Operator: feature.OpCountryEquals, Value: "us"}, feature.EvalContext{"country": "US"}, true},
		{"country in", feature.Rule{Type: feature.RuleGeography, Operator: feature.OpCountryIn, Values: []any{"DE", "FR"}}, feature.EvalContext{"country": "FR"}, true},
		{"country missing", feature.Rule{Type: feature.RuleGeography, Operator: feature.OpCountryIn, Values: []any{"DE"}}, nil, false},

		{"platform from context", feature.Rule{Type: feature.RuleDevice, Operator: feature.OpPlatformEquals, Value: "android"}, feature.EvalContext{"platform": "Android"}, true},
		{"mobile from user agent", feature.Rule{Type: feature.RuleDevice, Operator: feature.OpMobile},
			feature.EvalContext{"userAgent": "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Mobile/15E148"}, true},
		{"desktop from device type", feature.Rule{Type: feature.RuleDevice, Operator: feature.OpDesktop}, feature.EvalContext{"deviceType": "desktop"}, true},
		{"mobile without device info", feature.Rule{Type: feature.RuleDevice, Operator: feature.OpMobile}, nil, false},
		{"user agent contains", feature.Rule{Type: feature.RuleDevice, Operator: feature.OpUserAgentContains, Value: "firefox"},
			feature.EvalContext{"userAgent": "Mozilla/5.0 (X11; Linux x86_64) Gecko/20100101 Firefox/128.0"}, true},

		{"version greater", feature.Rule{Type: feature.RuleVersion, Operator: feature.OpVersionGreater, Value: "2.3.0"}, feature.EvalContext{"appVersion": "2.10.1"}, true},
		{"prerelease below base", feature.Rule{Type: feature.RuleVersion, Operator: feature.OpVersionGreaterEqual, Value: "2.0.0"}, feature.EvalContext{"appVersion": "2.0.0-beta.2"}, false},
		{"version less falls back to version key", feature.Rule{Type: feature.RuleVersion, Operator: feature.OpVersionLess, Value: "3"}, feature.EvalContext{"version": "2.9.9"}, true},
		{"unparsable version", feature.Rule{Type: feature.RuleVersion, Operator: feature.OpVersionLess, Value: "3.0"}, feature.EvalContext{"appVersion": "latest"}, false},

		{"percentage full", feature.Rule{Type: feature.RulePercentage, Operator: feature.OpPercentageIn, Value: 100}, feature.EvalContext{"feature_key": "x", "userId": "u1"}, true},
		{"percentage without feature key", feature.Rule{Type: feature.RulePercentage, Operator: feature.OpPercentageIn, Value: 100}, feature.EvalContext{"userId": "u1"}, false},

		{"unknown type", feature.Rule{Type: "weather", Operator: feature.OpEquals, Value: "sunny"}, feature.EvalContext{"weather": "sunny"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, feature.EvaluateRule(tt.rule, tt.ec, ruleNow))
		})
	}
}

func TestEvaluateRules(t *testing.T) {
	t.Parallel()

	country := feature.Rule{Type: feature.RuleGeography, Operator: feature.OpCountryEquals, Value: "US", Combinator: feature.And}
	premium := feature.Rule{Type: feature.RuleUserAttribute, Operator: feature.OpEquals, Attribute: "role", Value: "premium", Combinator: feature.And}

	t.Run("AND requires every rule", func(t *testing.T) {
		t.Parallel()
		rules := []feature.Rule{country, premium}
		cases := []struct {
			ec   feature.EvalContext
			want bool
		}{
			{feature.EvalContext{"country": "US", "role": "premium"}, true},
			{feature.EvalContext{"country": "US", "role": "free"}, false},
			{feature.EvalContext{"country": "CA", "role": "premium"}, false},
			{feature.EvalContext{"country": "US"}, false},
			{feature.EvalContext{"role": "premium"}, false},
			{feature.EvalContext{}, false},
		}
		for _, c := range cases {
			assert.Equal(t, c.want, feature.EvaluateRules(rules, c.ec, ruleNow), "context %v", c.ec)
		}
	})

	t.Run("empty list imposes no constraint", func(t *testing.T) {
		t.Parallel()
		assert.True(t, feature.EvaluateRules(nil, feature.EvalContext{}, ruleNow))
	})

	t.Run("OR short circuits", func(t *testing.T) {
		t.Parallel()
		staff := feature.Rule{Type: feature.RuleUserAttribute, Operator: feature.OpEquals, Attribute: "staff", Value: true, Combinator: feature.Or}
		rules := []feature.Rule{country, premium, staff}
		assert.True(t, feature.EvaluateRules(rules, feature.EvalContext{"staff": true}, ruleNow))
		assert.False(t, feature.EvaluateRules(rules, feature.EvalContext{"staff": false, "country": "US"}, ruleNow))
	})

	t.Run("OR only without match", func(t *testing.T) {
		t.Parallel()
		rule := country
		rule.Combinator = feature.Or
		assert.False(t, feature.EvaluateRules([]feature.Rule{rule}, feature.EvalContext{"country": "DE"}, ruleNow))
	})

	t.Run("NOT negates and is required", func(t *testing.T) {
		t.Parallel()
		notUS := country
		notUS.Combinator = feature.Not
		rules := []feature.Rule{premium, notUS}
		assert.True(t, feature.EvaluateRules(rules, feature.EvalContext{"country": "DE", "role": "premium"}, ruleNow))
		assert.False(t, feature.EvaluateRules(rules, feature.EvalContext{"country": "US", "role": "premium"}, ruleNow))
	})
}

func TestParseRules(t *testing.T) {
	t.Parallel()

	t.Run("array", func(t *testing.T) {
		t.Parallel()
		rules, err := feature.ParseRules([]byte(`[
			{"type":"geography","operator":"country_in","values":["US","CA"]},
			{"type":"user_attribute","operator":"equals","attribute":"role","value":"premium","combinator":"or"}
		]`))
		require.NoError(t, err)
		require.Len(t, rules, 2)
		assert.Equal(t, feature.And, rules[0].Combinator)
		assert.Equal(t, feature.Or, rules[1].Combinator)
	})

	t.Run("JSON text column", func(t *testing.T) {
		t.Parallel()
		rules, err := feature.ParseRules([]byte(`"[{\"type\":\"version\",\"operator\":\"version_less\",\"value\":\"2.0\"}]"`))
		require.NoError(t, err)
		require.Len(t, rules, 1)
		assert.Equal(t, feature.RuleVersion, rules[0].Type)
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		for _, raw := range []string{"", "null", `""`, "  "} {
			rules, err := feature.ParseRules([]byte(raw))
			require.NoError(t, err)
			assert.Nil(t, rules)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		t.Parallel()
		_, err := feature.ParseRules([]byte(`[{"type":"geography"`))
		require.ErrorIs(t, err, feature.ErrConfiguration)
	})

	t.Run("operator outside its type", func(t *testing.T) {
		t.Parallel()
		_, err := feature.ParseRules([]byte(`[{"type":"geography","operator":"version_less","value":"1"}]`))
		require.ErrorIs(t, err, feature.ErrInvalidRule)
	})
}

func TestCompareVersions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{"1.2.3", "1.2.3", 0},
		{"1.2", "1.2.0", 0},
		{"1.10.0", "1.9.9", 1},
		{"v2.0.0", "2.0.0", 0},
		{"2.0.0-rc.1", "2.0.0", -1},
		{"2.0.0-alpha", "2.0.0-beta", -1},
		{"2.0.0-beta.2", "2.0.0-beta.11", -1},
		{"2.0.0+build.5", "2.0.0", 0},
	}
	for _, tt := range tests {
		got, ok := feature.CompareVersions(tt.a, tt.b)
		require.True(t, ok, "%s vs %s", tt.a, tt.b)
		assert.Equal(t, tt.want, got, "%s vs %s", tt.a, tt.b)
	}

	_, ok := feature.CompareVersions("1.x", "1.0")
	assert.False(t, ok)
}

func BenchmarkEvaluateRules(b *testing.B) {
	rules := []feature.Rule{
		{Type: feature.RuleGeography, Operator: feature.OpCountryIn, Values: []any{"US", "CA", "GB"}, Combinator: feature.And},
		{Type: feature.RuleUserAttribute, Operator: feature.OpEquals, Attribute: "role", Value: "premium", Combinator: feature.And},
		{Type: feature.RuleVersion, Operator: feature.OpVersionGreaterEqual, Value: "2.1.0", Combinator: feature.And},
	}
	ec := feature.EvalContext{"country": "US", "role": "premium", "appVersion": "2.4.1"}
	for b.Loop() {
		_ = feature.EvaluateRules(rules, ec, ruleNow)
	}
}
