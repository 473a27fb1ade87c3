package manager

import (
	"regexp"
	"strings"

	"github.com/homevault/homevault-go/internal/infrastructure/caching/interfaces"
)

// scopedStore is the capability object handed to tenant and collection
// layers. The prefix is fixed at construction and checked on every call;
// a failed check is a security violation, never a silent correction.
type scopedStore struct {
	m      *Manager
	owner  string
	prefix string
}

func (s *scopedStore) validateKey(key string) error {
	if !strings.HasPrefix(key, s.prefix) {
		s.reportViolation(key)
		return interfaces.ErrSecurityViolation
	}
	return nil
}

// validatePattern requires the regex to anchor inside the granted prefix.
// A leading "^" is stripped before the check so anchored patterns pass.
func (s *scopedStore) validatePattern(pattern string) error {
	trimmed := strings.TrimPrefix(pattern, "^")
	if !strings.HasPrefix(trimmed, s.prefix) {
		s.reportViolation(pattern)
		return interfaces.ErrSecurityViolation
	}
	return nil
}

// scopePattern rebuilds a validated pattern so the compiled regex cannot
// reach outside the prefix: the prefix is quoted and start-anchored, and
// the remainder is grouped so a top-level alternation stays confined.
func (s *scopedStore) scopePattern(pattern string) string {
	rest := strings.TrimPrefix(strings.TrimPrefix(pattern, "^"), s.prefix)
	return "^" + regexp.QuoteMeta(s.prefix) + "(?:" + rest + ")"
}

func (s *scopedStore) reportViolation(key string) {
	if s.m.logger != nil {
		s.m.logger.LogSecurityViolation(s.owner, key)
	}
	if s.m.metrics != nil {
		s.m.metrics.RecordScopeViolation()
	}
}

func (s *scopedStore) Get(key string) (any, bool, error) {
	if err := s.validateKey(key); err != nil {
		return nil, false, err
	}
	value, found := s.m.get(key)
	return value, found, nil
}

func (s *scopedStore) Set(key string, value any, opts interfaces.EntryOptions) error {
	if err := s.validateKey(key); err != nil {
		return err
	}
	s.m.set(key, value, opts)
	return nil
}

func (s *scopedStore) Delete(key string) error {
	if err := s.validateKey(key); err != nil {
		return err
	}
	s.m.delete(key)
	return nil
}

func (s *scopedStore) DeletePattern(pattern string) error {
	if err := s.validatePattern(pattern); err != nil {
		return err
	}
	return s.m.deletePattern(s.scopePattern(pattern))
}

func (s *scopedStore) GetKeys(pattern string) ([]string, error) {
	if err := s.validatePattern(pattern); err != nil {
		return nil, err
	}
	return s.m.getKeys(s.scopePattern(pattern))
}
