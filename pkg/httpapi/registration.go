package httpapi

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/dmitrymomot/flaggate/pkg/abuse"
	"github.com/dmitrymomot/flaggate/pkg/clientip"
	"github.com/dmitrymomot/flaggate/pkg/fingerprint"
	"github.com/dmitrymomot/flaggate/pkg/sanitizer"
	"github.com/dmitrymomot/flaggate/pkg/validator"
)

// registrationRequest carries what only the caller knows. IP, fingerprint,
// user agent and headers come from the request itself.
type registrationRequest struct {
	Email        string `json:"email"`
	IPReputation *int   `json:"ip_reputation,omitempty"`
	VPN          bool   `json:"vpn,omitempty"`
	Proxy        bool   `json:"proxy,omitempty"`
}

func (req *registrationRequest) normalize() {
	req.Email = sanitizer.NormalizeEmail(req.Email)
}

func (req registrationRequest) validate() error {
	rules := []validator.Rule{validator.MaxLenString("email", req.Email, 254)}
	if req.Email != "" {
		rules = append(rules, validator.ValidEmail("email", req.Email))
	}
	if req.IPReputation != nil {
		rules = append(rules,
			validator.MinNum("ip_reputation", *req.IPReputation, 0),
			validator.MaxNum("ip_reputation", *req.IPReputation, 100),
		)
	}
	return validator.Apply(rules...)
}

type emailRequest struct {
	Email string `json:"email"`
}

type ipRequest struct {
	IP string `json:"ip"`
}

// registrationResponse is what the registering client sees. Score and mode
// stay server side.
type registrationResponse struct {
	Allowed                  bool `json:"allowed"`
	RequireCaptcha           bool `json:"require_captcha"`
	RequireEmailVerification bool `json:"require_email_verification"`
	RemainingAttempts        int  `json:"remaining_attempts"`
}

func newRegistrationResponse(res abuse.Result) registrationResponse {
	return registrationResponse{
		Allowed:                  res.Allowed,
		RequireCaptcha:           res.RequireCaptcha,
		RequireEmailVerification: res.RequireEmailVerification,
		RemainingAttempts:        res.RemainingAttempts,
	}
}

type confirmResponse struct {
	Confirmed bool `json:"confirmed"`
}

func attemptFrom(r *http.Request, req registrationRequest) abuse.Attempt {
	return abuse.Attempt{
		IP:           clientip.FromContext(r.Context()),
		Fingerprint:  fingerprint.FromContext(r.Context()),
		Email:        req.Email,
		UserAgent:    r.UserAgent(),
		Headers:      r.Header,
		IPReputation: req.IPReputation,
		VPN:          req.VPN,
		Proxy:        req.Proxy,
	}
}

// registrationCheck answers 200 with the verdict for allowed attempts and
// the mapped error status otherwise. Blocked IPs get Retry-After with what
// is left of their block.
func (a *API) registrationCheck(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	req.normalize()
	if err := req.validate(); err != nil {
		a.fail(w, r, err)
		return
	}

	res, err := a.protection.Check(r.Context(), attemptFrom(r, req))
	if err != nil {
		if errors.Is(err, abuse.ErrBlocked) || errors.Is(err, abuse.ErrTooManyAttempts) {
			retry := int(math.Ceil(res.RetryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
		}
		a.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, newRegistrationResponse(res))
}

func (a *API) registrationFailure(w http.ResponseWriter, r *http.Request) {
	if err := a.protection.RecordFailure(r.Context(), clientip.FromContext(r.Context())); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) registrationSuccess(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	req.normalize()
	if err := req.validate(); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.protection.RecordSuccess(r.Context(), attemptFrom(r, req)); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) registrationConfirm(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	req.Email = sanitizer.NormalizeEmail(req.Email)
	if err := validator.Apply(
		validator.RequiredString("email", req.Email),
		validator.ValidEmail("email", req.Email),
	); err != nil {
		a.fail(w, r, err)
		return
	}

	ok, err := a.protection.ConfirmPending(r.Context(), req.Email)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, confirmResponse{Confirmed: ok})
}

// registrationUnblock is an operator call: the IP comes from the body, not
// from the caller's address.
func (a *API) registrationUnblock(w http.ResponseWriter, r *http.Request) {
	var req ipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	req.IP = sanitizer.Trim(req.IP)
	if err := validator.Apply(
		validator.RequiredString("ip", req.IP),
		validator.ValidIP("ip", req.IP),
	); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.protection.Unblock(r.Context(), req.IP); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
