package permission

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
)

var (
	// ErrUnknownPermission is returned when a key is not part of the catalog.
	ErrUnknownPermission = errors.New("unknown permission")
	// ErrInvalidKey is returned for keys that are not of the form resource:action.
	ErrInvalidKey = errors.New("invalid permission key")
	// ErrDuplicateKey is returned when a catalog declares the same key twice.
	ErrDuplicateKey = errors.New("duplicate permission key")
)

var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*:[a-z][a-z0-9_-]*$`)

// Entry is a single catalog permission.
type Entry struct {
	Key      string `json:"key"`
	Category string `json:"category"`
	Label    string `json:"label"`
}

// Group is the display grouping of catalog entries that share a category.
type Group struct {
	Category string  `json:"category"`
	Entries  []Entry `json:"permissions"`
}

// Catalog is the static, read-only enumeration of every permission key the
// system understands. It is safe for concurrent use.
type Catalog struct {
	entries    []Entry
	index      map[string]int
	categories []string
}

// NewCatalog builds a catalog from entries. Category order follows first
// appearance in entries.
func NewCatalog(entries []Entry) (*Catalog, error) {
	c := &Catalog{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}

	seenCategory := make(map[string]struct{})
	for _, e := range entries {
		if !ValidKey(e.Key) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKey, e.Key)
		}
		if _, exists := c.index[e.Key]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, e.Key)
		}
		if e.Category == "" {
			return nil, fmt.Errorf("%w: %q has no category", ErrInvalidKey, e.Key)
		}

		c.index[e.Key] = len(c.entries)
		c.entries = append(c.entries, e)

		if _, ok := seenCategory[e.Category]; !ok {
			seenCategory[e.Category] = struct{}{}
			c.categories = append(c.categories, e.Category)
		}
	}

	if len(c.entries) == 0 {
		return nil, errors.New("catalog must contain at least one permission")
	}

	return c, nil
}

// ValidKey reports whether key has the resource:action shape.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

// Has reports whether key is a catalog permission.
func (c *Catalog) Has(key string) bool {
	if c == nil {
		return false
	}
	_, ok := c.index[key]
	return ok
}

// Lookup returns the catalog entry for key.
func (c *Catalog) Lookup(key string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	i, ok := c.index[key]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Entries returns a copy of all entries in declaration order.
func (c *Catalog) Entries() []Entry {
	if c == nil {
		return nil
	}
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Keys returns every catalog key, sorted.
func (c *Catalog) Keys() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.Key)
	}
	sort.Strings(out)
	return out
}

// Groups returns entries grouped by category for display.
func (c *Catalog) Groups() []Group {
	if c == nil {
		return nil
	}

	byCategory := make(map[string][]Entry, len(c.categories))
	for _, e := range c.entries {
		byCategory[e.Category] = append(byCategory[e.Category], e)
	}

	out := make([]Group, 0, len(c.categories))
	for _, cat := range c.categories {
		out = append(out, Group{Category: cat, Entries: byCategory[cat]})
	}
	return out
}

// Validate checks that every key belongs to the catalog and returns the
// deduplicated, sorted key list. The first unknown key is named in the error.
func (c *Catalog) Validate(keys []string) ([]string, error) {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if !c.Has(k) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPermission, k)
		}
		set[k] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}
