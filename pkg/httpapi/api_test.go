package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flaggate/pkg/abuse"
	"github.com/dmitrymomot/flaggate/pkg/audit"
	"github.com/dmitrymomot/flaggate/pkg/feature"
	"github.com/dmitrymomot/flaggate/pkg/flagsource"
	"github.com/dmitrymomot/flaggate/pkg/httpapi"
	"github.com/dmitrymomot/flaggate/pkg/httpserver"
	"github.com/dmitrymomot/flaggate/pkg/ratelimit"
)

const browserUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15"

type envelope struct {
	Data  json.RawMessage      `json:"data"`
	Meta  map[string]any       `json:"meta"`
	Error *httpapi.ErrorDetail `json:"error"`
}

type harness struct {
	handler  http.Handler
	src      *flagsource.Memory
	engine   *feature.Engine
	audit    *audit.MemoryStorage
	counters *ratelimit.MemoryStore
}

func newHarness(t *testing.T, opts ...httpapi.Option) *harness {
	t.Helper()
	ctx := context.Background()

	src := flagsource.NewMemory(
		&feature.Flag{Key: feature.DefaultSelfRegistrationKey, Category: feature.CategorySystem, Enabled: true, Version: 1},
		&feature.Flag{Key: "new-ui", Enabled: true, Version: 1},
		&feature.Flag{Key: "beta", Enabled: false, Version: 1},
	)
	store := feature.NewStore(src)
	require.NoError(t, store.Load(ctx))

	auditStore := audit.NewMemoryStorage()
	auditLog := audit.NewLogger(auditStore)

	engine := feature.NewEngine(store)
	manager := feature.NewManager(store, feature.WithManagerAudit(auditLog))
	emergency := feature.NewEmergency(store, feature.WithEmergencyAudit(auditLog))

	counters := ratelimit.NewMemoryStore()
	t.Cleanup(func() { _ = counters.Close() })
	protection := abuse.NewProtection(counters, engine,
		abuse.WithDisabler(emergency),
		abuse.WithPendingStore(abuse.NewMemoryPendingStore(0)),
		abuse.WithAudit(auditLog),
	)

	opts = append([]httpapi.Option{httpapi.WithProtection(protection)}, opts...)
	api := httpapi.New(engine, manager, emergency, opts...)
	return &harness{handler: api.Handler(), src: src, engine: engine, audit: auditStore, counters: counters}
}

func (h *harness) do(t *testing.T, method, target, body string, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Accept", "text/html,application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestEvaluate(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	t.Run("enabled flag", func(t *testing.T) {
		t.Parallel()
		rec, env := h.do(t, http.MethodPost, "/v1/evaluate", `{"key":"new-ui","context":{"userId":"u1"}}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

		d := decodeData[feature.Decision](t, env)
		assert.Equal(t, "new-ui", d.Key)
		assert.True(t, d.Enabled)
		assert.Equal(t, feature.ReasonDefault, d.Reason)
	})

	t.Run("disabled and unknown flags read as off", func(t *testing.T) {
		t.Parallel()
		for _, key := range []string{"beta", "missing"} {
			rec, env := h.do(t, http.MethodPost, "/v1/evaluate", `{"key":"`+key+`"}`)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.False(t, decodeData[feature.Decision](t, env).Enabled, key)
		}
	})

	t.Run("batch", func(t *testing.T) {
		t.Parallel()
		rec, env := h.do(t, http.MethodPost, "/v1/evaluate/batch", `{"keys":["new-ui","beta"],"context":{}}`)
		require.Equal(t, http.StatusOK, rec.Code)

		got := decodeData[struct {
			Values map[string]any `json:"values"`
		}](t, env)
		assert.Equal(t, map[string]any{"new-ui": true, "beta": false}, got.Values)
	})

	t.Run("request errors", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			name   string
			target string
			body   string
			ctype  string
			status int
			code   string
		}{
			{"missing key", "/v1/evaluate", `{"context":{}}`, "", http.StatusUnprocessableEntity, "validation_error"},
			{"empty batch", "/v1/evaluate/batch", `{"keys":[]}`, "", http.StatusUnprocessableEntity, "validation_error"},
			{"unknown field", "/v1/evaluate", `{"key":"a","extra":1}`, "", http.StatusBadRequest, "bad_request"},
			{"trailing data", "/v1/evaluate", `{"key":"a"}{}`, "", http.StatusBadRequest, "bad_request"},
			{"malformed", "/v1/evaluate", `{"key":`, "", http.StatusBadRequest, "bad_request"},
			{"wrong media type", "/v1/evaluate", `{"key":"a"}`, "text/plain", http.StatusUnsupportedMediaType, "unsupported_media_type"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()
				var headers []string
				if tt.ctype != "" {
					headers = []string{"Content-Type", tt.ctype}
				}
				rec, env := h.do(t, http.MethodPost, tt.target, tt.body, headers...)
				assert.Equal(t, tt.status, rec.Code)
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.code, env.Error.Code)
			})
		}
	})

	t.Run("validation details name the field", func(t *testing.T) {
		t.Parallel()
		_, env := h.do(t, http.MethodPost, "/v1/evaluate", `{"key":" "}`)
		require.NotNil(t, env.Error)
		assert.Contains(t, env.Error.Details, "key")
	})
}

func TestFlagManagement(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	actor := []string{httpapi.ActorHeader, "alice"}

	rec, env := h.do(t, http.MethodPost, "/v1/flags", `{"key":"checkout-v2","enabled":true,"rollout_percentage":100}`, actor...)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/v1/flags/checkout-v2", rec.Header().Get("Location"))
	created := decodeData[feature.Flag](t, env)
	assert.Equal(t, int64(1), created.Version)

	events := h.audit.Find(feature.ActionFlagCreate, audit.SeverityInfo)
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].Actor)

	rec, env = h.do(t, http.MethodPost, "/v1/flags", `{"key":"checkout-v2","enabled":true}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "flag_exists", env.Error.Code)

	rec, env = h.do(t, http.MethodPost, "/v1/flags", `{"key":"Bad Key","rollout_percentage":150}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "validation_error", env.Error.Code)
	assert.Contains(t, env.Error.Details, "key")
	assert.Contains(t, env.Error.Details, "rollout_percentage")

	rec, env = h.do(t, http.MethodGet, "/v1/flags/checkout-v2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeData[feature.Flag](t, env).Enabled)

	rec, env = h.do(t, http.MethodPut, "/v1/flags/checkout-v2", `{"key":"other","enabled":false}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, env.Error.Details, "key")

	rec, env = h.do(t, http.MethodPut, "/v1/flags/checkout-v2", `{"enabled":false}`, actor...)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeData[feature.Flag](t, env)
	assert.Equal(t, int64(2), updated.Version)
	assert.False(t, h.engine.IsEnabled(t.Context(), "checkout-v2", nil))

	rec, env = h.do(t, http.MethodGet, "/v1/flags", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeData[[]feature.Flag](t, env)
	require.Len(t, list, 4)
	assert.Equal(t, "beta", list[0].Key, "sorted by key")
	assert.EqualValues(t, 4, env.Meta["total"])

	rec, _ = h.do(t, http.MethodDelete, "/v1/flags/checkout-v2", "", actor...)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = h.do(t, http.MethodGet, "/v1/flags/checkout-v2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "flag_not_found", env.Error.Code)

	rec, env = h.do(t, http.MethodDelete, "/v1/flags/checkout-v2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "flag_not_found", env.Error.Code)

	rec, env = h.do(t, http.MethodPut, "/v1/flags/ghost", `{"enabled":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "flag_not_found", env.Error.Code)
}

func TestFlagManagement_NormalizesInput(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec, env := h.do(t, http.MethodPost, "/v1/flags",
		`{"key":" promo ","description":" Spring sale ","tags":[" sale","sale",""],"environments":["production","  "]}`,
		httpapi.ActorHeader, "  bob\r\n")
	require.Equal(t, http.StatusCreated, rec.Code)

	f := decodeData[feature.Flag](t, env)
	assert.Equal(t, "promo", f.Key)
	assert.Equal(t, "Spring sale", f.Description)
	assert.Equal(t, []string{"sale"}, f.Tags)
	assert.Equal(t, []string{"production"}, f.Environments)

	events := h.audit.Find(feature.ActionFlagCreate, audit.SeverityInfo)
	require.Len(t, events, 1)
	assert.Equal(t, "bob", events[0].Actor)
}

// readOnlySource serves a fixed set and can simulate an outage.
type readOnlySource struct {
	flags map[string]*feature.Flag
	err   error
}

func (s *readOnlySource) LoadAll(context.Context) ([]*feature.Flag, error) {
	out := make([]*feature.Flag, 0, len(s.flags))
	for _, f := range s.flags {
		out = append(out, f.Clone())
	}
	return out, nil
}

func (s *readOnlySource) Get(_ context.Context, key string) (*feature.Flag, error) {
	if s.err != nil {
		return nil, s.err
	}
	f, ok := s.flags[key]
	if !ok {
		return nil, feature.ErrFlagNotFound
	}
	return f.Clone(), nil
}

func TestFlagManagement_ReadOnlySource(t *testing.T) {
	t.Parallel()
	src := &readOnlySource{flags: map[string]*feature.Flag{"a": {Key: "a", Enabled: true}}}
	store := feature.NewStore(src)
	require.NoError(t, store.Load(t.Context()))
	api := httpapi.New(feature.NewEngine(store), feature.NewManager(store), feature.NewEmergency(store))
	h := &harness{handler: api.Handler()}

	rec, env := h.do(t, http.MethodPost, "/v1/flags", `{"key":"b","enabled":true}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "read_only_source", env.Error.Code)

	rec, env = h.do(t, http.MethodDelete, "/v1/flags/a", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "read_only_source", env.Error.Code)

	src.err = errors.New("connection refused")
	rec, env = h.do(t, http.MethodGet, "/v1/flags/zzz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "store_unavailable", env.Error.Code)
	assert.NotContains(t, env.Error.Message, "connection refused")

	rec, env = h.do(t, http.MethodPost, "/v1/flags/a/emergency-disable", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, decodeData[struct {
		Disabled bool `json:"disabled"`
	}](t, env).Disabled)
}

func TestEmergencyDisable(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec, env := h.do(t, http.MethodPost, "/v1/flags/new-ui/emergency-disable", `{"reason":"payment errors"}`,
		httpapi.ActorHeader, "oncall")
	require.Equal(t, http.StatusAccepted, rec.Code)

	got := decodeData[struct {
		Key       string `json:"key"`
		Disabled  bool   `json:"disabled"`
		Persisted bool   `json:"persisted"`
	}](t, env)
	assert.Equal(t, "new-ui", got.Key)
	assert.True(t, got.Disabled)
	assert.True(t, got.Persisted)

	assert.False(t, h.engine.IsEnabled(t.Context(), "new-ui", nil))
	f, err := h.src.Get(t.Context(), "new-ui")
	require.NoError(t, err)
	assert.False(t, f.Enabled)

	assert.Eventually(t, func() bool {
		return len(h.audit.Find(feature.ActionEmergencyDisable, audit.SeverityCritical)) == 1
	}, time.Second, 5*time.Millisecond)

	t.Run("disable all keeps system flags", func(t *testing.T) {
		rec, _ := h.do(t, http.MethodPost, "/v1/emergency/disable-all", "")
		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.False(t, h.engine.IsEnabled(t.Context(), "new-ui", nil))
		assert.True(t, h.engine.IsEnabled(t.Context(), feature.DefaultSelfRegistrationKey, nil))
	})
}

func TestRegistration(t *testing.T) {
	t.Parallel()

	t.Run("allowed attempt", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		rec, env := h.do(t, http.MethodPost, "/v1/registration/check", `{"email":"jane@company.com","ip_reputation":90}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-Protection-Mode"))

		res := decodeData[struct {
			Allowed           bool `json:"allowed"`
			RequireCaptcha    bool `json:"require_captcha"`
			RemainingAttempts int  `json:"remaining_attempts"`
		}](t, env)
		assert.True(t, res.Allowed)
		assert.False(t, res.RequireCaptcha)
		assert.Equal(t, 4, res.RemainingAttempts)

		fields := decodeData[map[string]any](t, env)
		assert.ElementsMatch(t,
			[]string{"allowed", "require_captcha", "require_email_verification", "remaining_attempts"},
			slices.Collect(maps.Keys(fields)),
		)
		assert.NotContains(t, fields, "score")
		assert.NotContains(t, fields, "mode")
	})

	t.Run("invalid input", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		rec, env := h.do(t, http.MethodPost, "/v1/registration/check", `{"email":"not-an-email","ip_reputation":101}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, env.Error.Details, "email")
		assert.Contains(t, env.Error.Details, "ip_reputation")
	})

	t.Run("too many attempts then blocked then unblocked", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		body := `{"email":"jane@company.com","ip_reputation":90}`

		for range 5 {
			rec, _ := h.do(t, http.MethodPost, "/v1/registration/check", body)
			require.Equal(t, http.StatusOK, rec.Code)
		}

		rec, env := h.do(t, http.MethodPost, "/v1/registration/check", body)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "too_many_attempts", env.Error.Code)
		assert.Equal(t, "3600", rec.Header().Get("Retry-After"))

		rec, env = h.do(t, http.MethodPost, "/v1/registration/check", body)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "blocked", env.Error.Code)
		assert.Equal(t, "3600", rec.Header().Get("Retry-After"))
		assert.Empty(t, rec.Header().Get("X-Protection-Mode"))

		rec, _ = h.do(t, http.MethodPost, "/v1/registration/unblock", `{"ip":"not-an-ip"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		rec, _ = h.do(t, http.MethodPost, "/v1/registration/unblock", `{"ip":"192.0.2.1"}`)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec, _ = h.do(t, http.MethodPost, "/v1/registration/check", body)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("registration disabled", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		rec, _ := h.do(t, http.MethodPost, "/v1/flags/"+feature.DefaultSelfRegistrationKey+"/emergency-disable", "")
		require.Equal(t, http.StatusAccepted, rec.Code)

		rec, env := h.do(t, http.MethodPost, "/v1/registration/check", `{"email":"jane@company.com"}`)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "registration_disabled", env.Error.Code)
	})

	t.Run("automated client", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		rec, env := h.do(t, http.MethodPost, "/v1/registration/check",
			`{"email":"x@tempmail.com","ip_reputation":20,"vpn":true}`,
			"User-Agent", "curl/8.4.0")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "registration_rejected", env.Error.Code)
		assert.NotContains(t, env.Error.Message, "score", "the reason is not disclosed")
	})

	t.Run("success then confirm", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		rec, _ := h.do(t, http.MethodPost, "/v1/registration/success", `{"email":"Jane@Company.com"}`)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec, env := h.do(t, http.MethodPost, "/v1/registration/confirm", `{"email":"jane@company.com"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decodeData[struct {
			Confirmed bool `json:"confirmed"`
		}](t, env).Confirmed)

		rec, env = h.do(t, http.MethodPost, "/v1/registration/confirm", `{"email":"jane@company.com"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, decodeData[struct {
			Confirmed bool `json:"confirmed"`
		}](t, env).Confirmed)
	})

	t.Run("failure is counted", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)

		rec, _ := h.do(t, http.MethodPost, "/v1/registration/failure", "")
		require.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("per ip rate limit", func(t *testing.T) {
		t.Parallel()
		limits := ratelimit.NewMemoryStore()
		t.Cleanup(func() { _ = limits.Close() })
		limiter, err := ratelimit.NewFixedWindow(limits, 1, time.Minute)
		require.NoError(t, err)
		h := newHarness(t, httpapi.WithRegistrationLimiter(limiter))

		rec, _ := h.do(t, http.MethodPost, "/v1/registration/check", `{"email":"jane@company.com"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		rec, env := h.do(t, http.MethodPost, "/v1/registration/check", `{"email":"jane@company.com"}`)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "too_many_requests", env.Error.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))

		rec, _ = h.do(t, http.MethodPost, "/v1/evaluate", `{"key":"new-ui"}`)
		assert.Equal(t, http.StatusOK, rec.Code, "other routes are not limited")
	})
}

func TestRegistrationRetryAfter(t *testing.T) {
	t.Parallel()

	const human = `{"email":"jane@company.com","ip_reputation":90}`

	tests := []struct {
		name    string
		trigger func(t *testing.T, h *harness)
		min     int
		max     int
	}{
		{
			name: "attempt limit block",
			trigger: func(t *testing.T, h *harness) {
				for range 6 {
					h.do(t, http.MethodPost, "/v1/registration/check", human)
				}
			},
			min: 3590,
			max: 3600,
		},
		{
			name: "automated registration block",
			trigger: func(t *testing.T, h *harness) {
				rec, _ := h.do(t, http.MethodPost, "/v1/registration/check",
					`{"email":"x@tempmail.com","ip_reputation":20,"vpn":true}`,
					"User-Agent", "curl/8.4.0")
				require.Equal(t, http.StatusForbidden, rec.Code)
				assert.Empty(t, rec.Header().Get("Retry-After"), "the rejection reason is not disclosed")
			},
			min: 86390,
			max: 86400,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)
			tt.trigger(t, h)

			rec, env := h.do(t, http.MethodPost, "/v1/registration/check", human)
			require.Equal(t, http.StatusTooManyRequests, rec.Code)
			assert.Equal(t, "blocked", env.Error.Code)

			retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
			require.NoError(t, err)
			assert.GreaterOrEqual(t, retry, tt.min)
			assert.LessOrEqual(t, retry, tt.max)
		})
	}
}

func TestRegistrationRoutesNeedProtection(t *testing.T) {
	t.Parallel()
	store := feature.NewStore(flagsource.NewMemory())
	api := httpapi.New(feature.NewEngine(store), feature.NewManager(store), feature.NewEmergency(store))
	h := &harness{handler: api.Handler()}

	rec, env := h.do(t, http.MethodPost, "/v1/registration/check", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", env.Error.Code)
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	h := newHarness(t, httpapi.WithHealthChecks(
		httpserver.Check{Name: "redis", Fn: func(context.Context) error { return nil }},
	))
	rec, _ := h.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	h = newHarness(t, httpapi.WithHealthChecks(
		httpserver.Check{Name: "postgres", Fn: func(context.Context) error { return errors.New("down") }},
	))
	rec, _ = h.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	rec, env := h.do(t, http.MethodGet, "/v1/evaluate", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "method_not_allowed", env.Error.Code)
}

func BenchmarkEvaluate(b *testing.B) {
	src := flagsource.NewMemory(&feature.Flag{Key: "new-ui", Enabled: true})
	store := feature.NewStore(src)
	require.NoError(b, store.Load(context.Background()))
	handler := httpapi.New(feature.NewEngine(store), feature.NewManager(store), feature.NewEmergency(store)).Handler()
	body := `{"key":"new-ui","context":{"userId":"u1"}}`

	for b.Loop() {
		req := httptest.NewRequest(http.MethodPost, "/v1/evaluate", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}
