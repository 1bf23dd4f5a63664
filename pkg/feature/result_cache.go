package feature

import (
	"encoding/hex"
	"encoding/json"
	"slices"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/dmitrymomot/flaggate/pkg/cache"
)

type cachedDecision struct {
	key      string
	decision Decision
	// deps are the prerequisite keys the decision was derived from.
	deps []string
}

// ResultCache keeps recent decisions keyed by flag key and a fingerprint of
// the evaluation context.
type ResultCache struct {
	entries *cache.Sharded[string, cachedDecision]
}

// NewResultCache creates a cache holding up to capacity decisions.
func NewResultCache(capacity int, opts ...cache.ShardedOption) *ResultCache {
	return &ResultCache{entries: cache.NewSharded[string, cachedDecision](capacity, opts...)}
}

func entryKey(key, fp string) string {
	return key + "\x00" + fp
}

// Get returns a cached decision with CacheHit set.
func (c *ResultCache) Get(key, fp string) (Decision, bool) {
	e, ok := c.entries.Get(entryKey(key, fp))
	if !ok {
		return Decision{}, false
	}
	d := e.decision
	d.CacheHit = true
	return d, true
}

// Set stores d for ttl. A non-positive ttl is a no-op.
func (c *ResultCache) Set(key, fp string, d Decision, deps []string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.entries.Set(entryKey(key, fp), cachedDecision{key: key, decision: d, deps: deps}, ttl)
}

// Invalidate drops every decision for key and every decision that depended
// on key as a prerequisite.
func (c *ResultCache) Invalidate(key string) int {
	return c.entries.DeleteFunc(func(_ string, e cachedDecision) bool {
		return e.key == key || slices.Contains(e.deps, key)
	})
}

func (c *ResultCache) Clear() { c.entries.Clear() }

func (c *ResultCache) Len() int { return c.entries.Len() }

// Fingerprint hashes the evaluation context together with the resolved
// environment. It returns false when the context cannot be encoded, in which
// case the decision must not be cached.
func Fingerprint(ec EvalContext, env string) (string, bool) {
	// encoding/json sorts map keys, so equal contexts encode identically.
	data, err := json.Marshal(ec)
	if err != nil {
		return "", false
	}
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(env))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), true
}
