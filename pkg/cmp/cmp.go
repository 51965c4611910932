// Package cmp has equality helpers for slices and maps,
// mostly used to compare expected and actual values in tests.
package cmp

// SliceEq reports whether a and b hold the same elements in the same order.
func SliceEq[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i, va := range a {
		if va != b[i] {
			return false
		}
	}
	return true
}

// SliceEqWith compares a and b element-wise with pred.
func SliceEqWith[S, T any](a []S, b []T, pred func(S, T) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !pred(a[i], b[i]) {
			return false
		}
	}
	return true
}

// SliceContentEq reports whether a and b hold the same elements,
// ignoring order but not multiplicity.
//
//	SliceContentEq([]string{"a", "b"}, []string{"b", "a"})      // true
//	SliceContentEq([]string{"a", "a", "b"}, []string{"a", "b"}) // false
func SliceContentEq[T comparable](a, b []T) bool {
	return SliceContentEqWith(a, b, func(x, y T) bool { return x == y })
}

// SliceContentEqWith is SliceContentEq with an explicit equivalence.
// Each element of a claims one not-yet-claimed equivalent element of b.
func SliceContentEqWith[S, T any](a []S, b []T, equiv func(S, T) bool) bool {
	if len(a) != len(b) {
		return false
	}

	claimed := make([]bool, len(b))
	for _, va := range a {
		found := false
		for i := range b {
			if claimed[i] || !equiv(va, b[i]) {
				continue
			}
			claimed[i] = true
			found = true
			break
		}
		if !found {
			return false
		}
	}
	return true
}

// MapEq reports whether a and b hold the same key-value pairs.
func MapEq[K, V comparable](a, b map[K]V) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		if vb, ok := b[k]; !ok || va != vb {
			return false
		}
	}
	return true
}
