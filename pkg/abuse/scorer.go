package abuse

import (
	"bufio"
	"context"
	_ "embed"
	"errors"
	"math"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/dmitrymomot/flaggate/pkg/ratelimit"
	"github.com/dmitrymomot/flaggate/pkg/useragent"
)

//go:embed disposable_domains.txt
var disposableList string

// Signal weights. A strong signal alone crosses the default high threshold.
const (
	weightDisposable       = 0.75
	weightAutomation       = 0.75
	weightRegularTiming    = 0.4
	weightReputation       = 0.3 // scaled by (100-reputation)/100
	weightVPN              = 0.15
	weightProxy            = 0.15
	weightFingerprintReuse = 0.1 // per reuse, capped
	maxFingerprintReuse    = 0.3
	weightFailedAttempt    = 0.05 // per failure, capped
	maxFailedAttempts      = 0.25
	weightMissingUserAgent = 0.1
	weightNoAcceptLanguage = 0.05

	minTimingIntervals = 3
	regularTimingCV    = 0.1
)

// Signals is the breakdown behind a suspicion score.
type Signals struct {
	DisposableEmail       bool    `json:"disposable_email,omitempty"`
	AutomationTool        string  `json:"automation_tool,omitempty"`
	MissingUserAgent      bool    `json:"missing_user_agent,omitempty"`
	MissingAcceptLanguage bool    `json:"missing_accept_language,omitempty"`
	IPReputation          *int    `json:"ip_reputation,omitempty"`
	VPN                   bool    `json:"vpn,omitempty"`
	Proxy                 bool    `json:"proxy,omitempty"`
	FailedAttempts        int64   `json:"failed_attempts,omitempty"`
	FingerprintReuse      int64   `json:"fingerprint_reuse,omitempty"`
	RegularTiming         bool    `json:"regular_timing,omitempty"`
	TimingCV              float64 `json:"timing_cv,omitempty"`
}

// Score combines s into a value in [0,1]. Signals add up instead of being
// averaged so one strong signal is never diluted by clean ones.
func Score(s Signals) float64 {
	var score float64
	if s.DisposableEmail {
		score += weightDisposable
	}
	if s.AutomationTool != "" {
		score += weightAutomation
	}
	if s.RegularTiming {
		score += weightRegularTiming
	}
	if s.IPReputation != nil {
		rep := min(max(*s.IPReputation, 0), 100)
		score += weightReputation * float64(100-rep) / 100
	}
	if s.VPN {
		score += weightVPN
	}
	if s.Proxy {
		score += weightProxy
	}
	score += min(weightFingerprintReuse*float64(s.FingerprintReuse), maxFingerprintReuse)
	score += min(weightFailedAttempt*float64(s.FailedAttempts), maxFailedAttempts)
	if s.MissingUserAgent {
		score += weightMissingUserAgent
	}
	if s.MissingAcceptLanguage {
		score += weightNoAcceptLanguage
	}
	return min(max(score, 0), 1)
}

// Scorer gathers Signals for an attempt from the request itself and from
// counters kept in the store.
type Scorer struct {
	store      ratelimit.Store
	t          Thresholds
	disposable map[string]struct{}
	now        func() time.Time
}

// NewScorer loads the built-in disposable domain list plus extra.
func NewScorer(store ratelimit.Store, t Thresholds, extra ...string) *Scorer {
	s := &Scorer{
		store:      store,
		t:          t,
		disposable: make(map[string]struct{}),
		now:        time.Now,
	}
	sc := bufio.NewScanner(strings.NewReader(disposableList))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		s.disposable[strings.ToLower(line)] = struct{}{}
	}
	for _, d := range extra {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			s.disposable[d] = struct{}{}
		}
	}
	return s
}

// IsDisposable reports whether the email's domain, or one of its parent
// domains, is a known throwaway provider.
func (s *Scorer) IsDisposable(email string) bool {
	domain := EmailDomain(email)
	for domain != "" {
		if _, ok := s.disposable[domain]; ok {
			return true
		}
		_, parent, found := strings.Cut(domain, ".")
		if !found || !strings.Contains(parent, ".") {
			return false
		}
		domain = parent
	}
	return false
}

// Signals collects the signals for a and records the attempt time for
// timing analysis.
func (s *Scorer) Signals(ctx context.Context, a Attempt) (Signals, error) {
	sig := Signals{
		DisposableEmail:       s.IsDisposable(a.Email),
		IPReputation:          a.IPReputation,
		VPN:                   a.VPN,
		Proxy:                 a.Proxy,
		MissingUserAgent:      strings.TrimSpace(a.UserAgent) == "",
		MissingAcceptLanguage: a.Headers != nil && a.Headers.Get("Accept-Language") == "",
	}
	if !sig.MissingUserAgent {
		sig.AutomationTool = useragent.AutomationTool(a.UserAgent)
	}
	if tool := headlessHint(a.Headers); sig.AutomationTool == "" && tool != "" {
		sig.AutomationTool = tool
	}

	var errs []error
	failed, _, err := s.store.Get(ctx, failedKey(a.IP))
	errs = append(errs, err)
	sig.FailedAttempts = failed

	if a.Fingerprint != "" {
		reuse, _, err := s.store.Get(ctx, reuseKey(a.Fingerprint))
		errs = append(errs, err)
		sig.FingerprintReuse = reuse
	}

	cv, regular, err := s.timing(ctx, timingKey(a))
	errs = append(errs, err)
	sig.TimingCV, sig.RegularTiming = cv, regular

	if err := errors.Join(errs...); err != nil {
		return sig, errors.Join(ErrStoreUnavailable, err)
	}
	return sig, nil
}

// timing records now under key and checks the intervals between the last
// TimingSamples attempts. Intervals with a coefficient of variation below
// 0.1 look scripted.
func (s *Scorer) timing(ctx context.Context, key string) (float64, bool, error) {
	window := s.t.TimingWindow
	if window <= 0 {
		window = time.Hour
	}
	now := s.now()
	if err := s.store.RecordTimestamp(ctx, key, now, window); err != nil {
		return 0, false, err
	}
	ts, err := s.store.Timestamps(ctx, key, now, window)
	if err != nil {
		return 0, false, err
	}
	if n := s.t.TimingSamples; n > 0 && len(ts) > n {
		ts = ts[len(ts)-n:]
	}
	cv, ok := intervalCV(ts)
	return cv, ok && cv < regularTimingCV, nil
}

// intervalCV returns the coefficient of variation of the gaps between ts. It
// needs at least three intervals.
func intervalCV(ts []time.Time) (float64, bool) {
	if len(ts) < minTimingIntervals+1 {
		return 0, false
	}
	ts = slices.SortedFunc(slices.Values(ts), time.Time.Compare)

	intervals := make([]float64, 0, len(ts)-1)
	var sum float64
	for i := 1; i < len(ts); i++ {
		d := ts[i].Sub(ts[i-1]).Seconds()
		intervals = append(intervals, d)
		sum += d
	}
	mean := sum / float64(len(intervals))
	if mean <= 0 {
		// Simultaneous attempts are as regular as it gets.
		return 0, true
	}

	var variance float64
	for _, d := range intervals {
		variance += (d - mean) * (d - mean)
	}
	variance /= float64(len(intervals))
	return math.Sqrt(variance) / mean, true
}

// headlessHint checks client hint headers that headless browsers leak even
// when the User-Agent is spoofed.
func headlessHint(h http.Header) string {
	if h == nil {
		return ""
	}
	if strings.Contains(strings.ToLower(h.Get("Sec-Ch-Ua")), "headless") {
		return "headless"
	}
	return ""
}

// EmailDomain returns the lower-cased domain part of email, or "".
func EmailDomain(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:]))
}

func attemptsKey(ip string) string { return "reg:attempts:" + ip }
func blockKey(ip string) string    { return "reg:block:" + ip }
func failedKey(ip string) string   { return "reg:failed:" + ip }
func reuseKey(fp string) string    { return "reg:fp:" + fp }

func timingKey(a Attempt) string {
	if a.Fingerprint != "" {
		return "reg:timing:fp:" + a.Fingerprint
	}
	return "reg:timing:ip:" + a.IP
}
