package types

// CachePreferences controls which cache shapes are maintained for one
// (owner, collection) pair. A single-field pattern enables byKey caching on
// equality queries against that field; a pattern of two or more fields
// enables Query caching for compound-equality queries over exactly that
// field set.
type CachePreferences struct {
	CacheAll      bool       `json:"cacheAll"`
	CacheRecent   bool       `json:"cacheRecent"`
	CachePatterns [][]string `json:"cachePatterns"`
}

// SingleFieldPatterns returns the declared one-field patterns
func (p CachePreferences) SingleFieldPatterns() []string {
	var fields []string
	for _, pattern := range p.CachePatterns {
		if len(pattern) == 1 {
			fields = append(fields, pattern[0])
		}
	}
	return fields
}

// MultiFieldPatterns returns the declared patterns of two or more fields
func (p CachePreferences) MultiFieldPatterns() [][]string {
	var patterns [][]string
	for _, pattern := range p.CachePatterns {
		if len(pattern) >= 2 {
			patterns = append(patterns, pattern)
		}
	}
	return patterns
}

// HasSingleFieldPattern reports whether byKey caching is declared for a field
func (p CachePreferences) HasSingleFieldPattern(field string) bool {
	for _, pattern := range p.CachePatterns {
		if len(pattern) == 1 && pattern[0] == field {
			return true
		}
	}
	return false
}
