package utils

func Ptr[T any](v T) *T {
	return &v
}

// ValueOr dereferences v, falling back to def when v is nil. Patch types use
// it so a nil field leaves the current value alone.
func ValueOr[T any](v *T, def T) T {
	if v == nil {
		return def
	}
	return *v
}
