package feature_test

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrymomot/flaggate/pkg/feature"
)

// fakeSource is an in-memory WritableSource and OverrideSource with error
// injection and call counting.
type fakeSource struct {
	mu        sync.Mutex
	flags     map[string]*feature.Flag
	overrides map[string]bool

	getErr        error
	loadErr       error
	setEnabledErr error

	gets      int
	overrideN int
}

func newFakeSource(flags ...*feature.Flag) *fakeSource {
	s := &fakeSource{flags: map[string]*feature.Flag{}, overrides: map[string]bool{}}
	for _, f := range flags {
		s.flags[f.Key] = f.Clone()
	}
	return s
}

func (s *fakeSource) LoadAll(context.Context) ([]*feature.Flag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	out := make([]*feature.Flag, 0, len(s.flags))
	for _, f := range s.flags {
		out = append(out, f.Clone())
	}
	return out, nil
}

func (s *fakeSource) Get(_ context.Context, key string) (*feature.Flag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}
	f, ok := s.flags[key]
	if !ok {
		return nil, feature.ErrFlagNotFound
	}
	return f.Clone(), nil
}

func (s *fakeSource) UserOverride(_ context.Context, key, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrideN++
	return s.overrides[key+"/"+userID], nil
}

func (s *fakeSource) Create(_ context.Context, f *feature.Flag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flags[f.Key]; ok {
		return feature.ErrFlagExists
	}
	s.flags[f.Key] = f.Clone()
	return nil
}

func (s *fakeSource) Update(_ context.Context, f *feature.Flag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flags[f.Key]; !ok {
		return feature.ErrFlagNotFound
	}
	s.flags[f.Key] = f.Clone()
	return nil
}

func (s *fakeSource) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flags[key]; !ok {
		return feature.ErrFlagNotFound
	}
	delete(s.flags, key)
	return nil
}

func (s *fakeSource) SetEnabled(_ context.Context, key string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setEnabledErr != nil {
		return s.setEnabledErr
	}
	f, ok := s.flags[key]
	if !ok {
		return feature.ErrFlagNotFound
	}
	f.Enabled = enabled
	f.Version++
	return nil
}

func (s *fakeSource) set(f *feature.Flag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[f.Key] = f.Clone()
}

func (s *fakeSource) flag(key string) *feature.Flag {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags[key].Clone()
}

func (s *fakeSource) failGets(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getErr = err
}

func (s *fakeSource) getCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

// readOnlySource hides the write methods of a source.
type readOnlySource struct{ feature.Source }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func ptr[T any](v T) *T { return &v }
