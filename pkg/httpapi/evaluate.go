package httpapi

import (
	"maps"
	"net/http"

	"github.com/dmitrymomot/flaggate/pkg/feature"
	"github.com/dmitrymomot/flaggate/pkg/validator"
)

const maxBatchKeys = 100

type evaluateRequest struct {
	Key     string              `json:"key"`
	Context feature.EvalContext `json:"context"`
}

type batchRequest struct {
	Keys    []string            `json:"keys"`
	Context feature.EvalContext `json:"context"`
}

type batchResponse struct {
	Values map[string]any `json:"values"`
}

func (a *API) evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := validator.Apply(validator.RequiredString("key", req.Key)); err != nil {
		a.fail(w, r, err)
		return
	}

	d := a.engine.Evaluate(r.Context(), req.Key, withRequest(req.Context, r))
	respond(w, http.StatusOK, d)
}

func (a *API) evaluateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := validator.Apply(
		validator.RequiredSlice("keys", req.Keys),
		validator.MaxLenSlice("keys", req.Keys, maxBatchKeys),
	); err != nil {
		a.fail(w, r, err)
		return
	}

	values := a.engine.EvaluateMany(r.Context(), req.Keys, withRequest(req.Context, r))
	respond(w, http.StatusOK, batchResponse{Values: values})
}

// withRequest fills the user agent from the request when the caller did not
// send one. The caller's context is not modified.
func withRequest(ec feature.EvalContext, r *http.Request) feature.EvalContext {
	out := make(feature.EvalContext, len(ec)+1)
	maps.Copy(out, ec)
	if _, ok := out.String(feature.CtxUserAgent); !ok {
		if ua := r.UserAgent(); ua != "" {
			out[feature.CtxUserAgent] = ua
		}
	}
	return out
}
