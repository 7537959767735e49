package permission

// HasPermission reports whether granted contains key. A nil set grants nothing.
func HasPermission(granted *Set, key string) bool {
	if granted == nil || key == "" {
		return false
	}
	return granted.Contains(key)
}

// HasAll reports whether granted contains every key. An empty key list is
// denied.
func HasAll(granted *Set, keys ...string) bool {
	if granted == nil || len(keys) == 0 {
		return false
	}
	for _, k := range keys {
		if !granted.Contains(k) {
			return false
		}
	}
	return true
}

// HasAny reports whether granted contains at least one of keys. An empty key
// list is denied.
func HasAny(granted *Set, keys ...string) bool {
	if granted == nil || len(keys) == 0 {
		return false
	}
	for _, k := range keys {
		if granted.Contains(k) {
			return true
		}
	}
	return false
}
