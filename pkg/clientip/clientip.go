package clientip

import (
	"errors"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ErrInvalidProxy is returned for a trusted proxy entry that is neither an
// IP nor a CIDR.
var ErrInvalidProxy = errors.New("clientip: invalid trusted proxy")

// DefaultHeaders are consulted in order when the peer is a trusted proxy.
var DefaultHeaders = []string{"CF-Connecting-IP", "X-Real-IP", "X-Forwarded-For"}

// DefaultTrustedProxies covers loopback and private networks, where load
// balancers usually live.
var DefaultTrustedProxies = []string{
	"127.0.0.0/8", "::1/128",
	"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "fc00::/7",
}

// Resolver finds the client address of a request. Forwarding headers are
// trusted only when the TCP peer is a trusted proxy, so clients cannot pick
// their own address to dodge per-IP limits.
type Resolver struct {
	trusted []netip.Prefix
	headers []string
}

// Option configures a Resolver.
type Option func(*Resolver) error

// WithTrustedProxies replaces the trusted proxy list. Entries are IPs or
// CIDRs. An empty list trusts no proxy at all.
func WithTrustedProxies(entries ...string) Option {
	return func(r *Resolver) error {
		prefixes, err := parsePrefixes(entries)
		if err != nil {
			return err
		}
		r.trusted = prefixes
		return nil
	}
}

// WithHeaders replaces the headers consulted behind a trusted proxy.
func WithHeaders(names ...string) Option {
	return func(r *Resolver) error {
		r.headers = names
		return nil
	}
}

// NewResolver builds a resolver that trusts DefaultTrustedProxies and reads
// DefaultHeaders unless told otherwise.
func NewResolver(opts ...Option) (*Resolver, error) {
	trusted, _ := parsePrefixes(DefaultTrustedProxies)
	r := &Resolver{trusted: trusted, headers: DefaultHeaders}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// IP returns the normalized client address, or "" when none can be found.
func (r *Resolver) IP(req *http.Request) string {
	peer, ok := remoteAddr(req.RemoteAddr)
	if !ok {
		return ""
	}
	if !r.isTrusted(peer) {
		return peer.String()
	}

	for _, name := range r.headers {
		value := req.Header.Get(name)
		if value == "" {
			continue
		}
		if strings.EqualFold(name, "X-Forwarded-For") {
			if ip, ok := r.forwardedFor(req.Header.Values(name)); ok {
				return ip.String()
			}
			continue
		}
		if ip, ok := parseAddr(value); ok {
			return ip.String()
		}
	}
	return peer.String()
}

// forwardedFor walks the chain right to left and returns the first hop that
// is not a trusted proxy. The left-most entries are client supplied.
func (r *Resolver) forwardedFor(values []string) (netip.Addr, bool) {
	var hops []string
	for _, v := range values {
		hops = append(hops, strings.Split(v, ",")...)
	}
	var last netip.Addr
	for i := len(hops) - 1; i >= 0; i-- {
		ip, ok := parseAddr(hops[i])
		if !ok {
			// A garbled hop ends the trusted part of the chain.
			break
		}
		last = ip
		if !r.isTrusted(ip) {
			return ip, true
		}
	}
	return last, last.IsValid()
}

func (r *Resolver) isTrusted(ip netip.Addr) bool {
	for _, p := range r.trusted {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

func remoteAddr(addr string) (netip.Addr, bool) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	return parseAddr(host)
}

// parseAddr accepts bare and bracketed addresses and unmaps IPv4-in-IPv6.
func parseAddr(s string) (netip.Addr, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return ip.Unmap(), true
}

func parsePrefixes(entries []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, errors.Join(ErrInvalidProxy, err)
			}
			out = append(out, p.Masked())
			continue
		}
		ip, ok := parseAddr(e)
		if !ok {
			return nil, errors.Join(ErrInvalidProxy, errors.New(e))
		}
		out = append(out, netip.PrefixFrom(ip, ip.BitLen()))
	}
	return out, nil
}
