package feature

import "reflect"

// Well-known EvalContext keys.
const (
	CtxUserID      = "userId"
	CtxAnonymousID = "anonymousId"
	CtxUserRoles   = "userRoles"
	CtxEnvironment = "environment"
	CtxCountry     = "country"
	CtxPlatform    = "platform"
	CtxDeviceType  = "deviceType"
	CtxUserAgent   = "userAgent"
	CtxAppVersion  = "appVersion"
	CtxVersion     = "version"
	CtxFeatureKey  = "feature_key"
)

// EvalContext carries request and user attributes into an evaluation.
// Values may be of any type; lookups that find the wrong type behave as if
// the key were absent.
type EvalContext map[string]any

// String returns a non-empty string value for key.
func (c EvalContext) String(key string) (string, bool) {
	s, ok := c[key].(string)
	return s, ok && s != ""
}

// Strings returns key as a string slice. A single string is promoted to a
// one-element slice.
func (c EvalContext) Strings(key string) []string {
	switch v := c[key].(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	}

	items := toList(c[key])
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Subject returns the stable bucketing identity: userId, else anonymousId.
func (c EvalContext) Subject() string {
	if id, ok := c.String(CtxUserID); ok {
		return id
	}
	id, _ := c.String(CtxAnonymousID)
	return id
}

// with returns a shallow copy with key set.
func (c EvalContext) with(key string, value any) EvalContext {
	out := make(EvalContext, len(c)+1)
	for k, v := range c {
		out[k] = v
	}
	out[key] = value
	return out
}

func toList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
