// Package matching selects keys by include and exclude patterns.
package matching

import (
	"path"
	"strings"
)

// Filter decides which keys take part in listing and import.
type Filter struct {
	options *Options
}

// New creates a filter; with no options every key matches.
func New(opts ...Option) *Filter {
	return &Filter{options: NewOptions(opts...)}
}

// Match reports whether key passes the inclusion and exclusion rules.
func (f *Filter) Match(key string) bool {
	if f == nil {
		return true
	}
	if len(f.options.Inclusions) > 0 && !anyMatch(f.options.Inclusions, key) {
		return false
	}
	return !anyMatch(f.options.Exclusions, key)
}

// MatchValue reports whether key matches and a value of size bytes is within the limit.
func (f *Filter) MatchValue(key string, size int) bool {
	if f != nil && f.options.MaxValueSize > 0 && size > f.options.MaxValueSize {
		return false
	}
	return f.Match(key)
}

// Keys returns the matching subset of keys, preserving order.
func (f *Filter) Keys(keys []string) []string {
	ret := make([]string, 0, len(keys))
	for _, key := range keys {
		if f.Match(key) {
			ret = append(ret, key)
		}
	}
	return ret
}

func anyMatch(patterns []string, key string) bool {
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" || strings.HasPrefix(pattern, "#") {
			continue
		}
		if matches(pattern, key) {
			return true
		}
	}
	return false
}

// matches treats a pattern without glob characters as a key prefix.
func matches(pattern, key string) bool {
	if !strings.ContainsAny(pattern, "*?[") {
		return strings.HasPrefix(key, pattern)
	}
	ok, err := path.Match(pattern, key)
	return err == nil && ok
}
