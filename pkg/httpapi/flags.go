package httpapi

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/flaggate/pkg/feature"
	"github.com/dmitrymomot/flaggate/pkg/logger"
	"github.com/dmitrymomot/flaggate/pkg/sanitizer"
	"github.com/dmitrymomot/flaggate/pkg/validator"
)

type emergencyRequest struct {
	Reason string `json:"reason"`
}

type emergencyResponse struct {
	Key       string `json:"key,omitempty"`
	Disabled  bool   `json:"disabled"`
	Persisted bool   `json:"persisted"`
}

func (a *API) listFlags(w http.ResponseWriter, r *http.Request) {
	flags := a.manager.ListFlags()
	slices.SortFunc(flags, func(x, y *feature.Flag) int { return strings.Compare(x.Key, y.Key) })
	respondMeta(w, http.StatusOK, flags, map[string]any{"total": len(flags)})
}

func (a *API) getFlag(w http.ResponseWriter, r *http.Request) {
	f, err := a.manager.GetFlag(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, f)
}

func (a *API) createFlag(w http.ResponseWriter, r *http.Request) {
	var f feature.Flag
	if err := decodeJSON(w, r, &f); err != nil {
		a.fail(w, r, err)
		return
	}
	normalizeFlag(&f)

	created, err := a.manager.CreateFlag(r.Context(), &f, actor(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/flags/"+created.Key)
	respond(w, http.StatusCreated, created)
}

// updateFlag replaces the flag named in the path. A body key, when present,
// must match it.
func (a *API) updateFlag(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var f feature.Flag
	if err := decodeJSON(w, r, &f); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := validator.Apply(validator.Custom("key", f.Key == "" || f.Key == key,
		"must match the flag key in the path", "key_mismatch")); err != nil {
		a.fail(w, r, err)
		return
	}
	f.Key = key
	normalizeFlag(&f)

	updated, err := a.manager.UpdateFlag(r.Context(), &f, actor(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, updated)
}

func (a *API) deleteFlag(w http.ResponseWriter, r *http.Request) {
	if err := a.manager.DeleteFlag(r.Context(), chi.URLParam(r, "key"), actor(r)); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// emergencyDisable answers 202 once the flag is off in this instance. A
// persist failure does not undo that, so it is reported in the body rather
// than as an error status.
func (a *API) emergencyDisable(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	req, ok := a.decodeEmergency(w, r)
	if !ok {
		return
	}

	_, err := a.emergency.Disable(r.Context(), key, req.Reason, actor(r))
	persisted, err := persistOutcome(err)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !persisted {
		a.log.WarnContext(r.Context(), "emergency disable not persisted",
			logger.Component("httpapi"), logger.FlagKey(key))
	}
	respond(w, http.StatusAccepted, emergencyResponse{Key: key, Disabled: true, Persisted: persisted})
}

func (a *API) emergencyDisableAll(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeEmergency(w, r)
	if !ok {
		return
	}

	_, err := a.emergency.DisableAllFeatures(r.Context(), req.Reason, actor(r))
	persisted, err := persistOutcome(err)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respond(w, http.StatusAccepted, emergencyResponse{Disabled: true, Persisted: persisted})
}

// decodeEmergency accepts an empty body; a reason is optional.
func (a *API) decodeEmergency(w http.ResponseWriter, r *http.Request) (emergencyRequest, bool) {
	var req emergencyRequest
	if r.ContentLength == 0 {
		return req, true
	}
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return req, false
	}
	if err := validator.Apply(validator.MaxLenString("reason", req.Reason, 512)); err != nil {
		a.fail(w, r, err)
		return req, false
	}
	return req, true
}

// normalizeFlag cleans the free-form parts of a submitted definition before
// validation.
func normalizeFlag(f *feature.Flag) {
	f.Key = sanitizer.Trim(f.Key)
	f.Description = sanitizer.Trim(f.Description)
	f.Category = sanitizer.Apply(f.Category, sanitizer.Trim, sanitizer.ToLower)
	f.Environments = sanitizer.CleanStringSlice(f.Environments)
	f.UserIDs = sanitizer.CleanStringSlice(f.UserIDs)
	f.Roles = sanitizer.CleanStringSlice(f.Roles)
	f.Prerequisites = sanitizer.CleanStringSlice(f.Prerequisites)
	f.Tags = sanitizer.CleanStringSlice(f.Tags)
}

func persistOutcome(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, feature.ErrPersistFailed):
		return false, nil
	default:
		return false, err
	}
}
