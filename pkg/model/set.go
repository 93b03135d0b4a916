package model

// Keyed is implemented by every entity; Key returns the surrogate id, zero
// until the entity is persisted.
type Keyed interface {
	Key() int64
}

// same reports whether a and b denote the same stored row, or the same
// unpersisted object.
func same[T interface {
	comparable
	Keyed
}](a, b T) bool {
	if a == b {
		return true
	}
	return a.Key() != 0 && a.Key() == b.Key()
}

// addMember adds m to set. A member already present for the same row is
// replaced, so a re-hydrated object supersedes a stale one.
func addMember[T interface {
	comparable
	Keyed
}](set []T, m T) []T {
	for i, existing := range set {
		if same(existing, m) {
			set[i] = m
			return set
		}
	}
	return append(set, m)
}

func removeMember[T interface {
	comparable
	Keyed
}](set []T, m T) ([]T, bool) {
	removed := false
	kept := set[:0]
	for _, existing := range set {
		if same(existing, m) {
			removed = true
			continue
		}
		kept = append(kept, existing)
	}
	// clear the tail so dropped pointers do not linger in the backing array
	var zero T
	for i := len(kept); i < len(set); i++ {
		set[i] = zero
	}
	return kept, removed
}

func containsMember[T interface {
	comparable
	Keyed
}](set []T, m T) bool {
	for _, existing := range set {
		if same(existing, m) {
			return true
		}
	}
	return false
}

func snapshot[T any](set []T) []T {
	if len(set) == 0 {
		return nil
	}
	out := make([]T, len(set))
	copy(out, set)
	return out
}
