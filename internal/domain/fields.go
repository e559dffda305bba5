package domain

import "time"

// Legacy payloads are permissive: a nil pointer means "not present", which
// is not the same as "set to null". The apply helpers overlay a present
// value, record the field name when the stored value actually changes, and
// always return a fresh pointer so updated entities share no storage with
// their predecessors.

func applyInt64(curr, next *int64, name string, changed *[]string) *int64 {
	if next == nil {
		return curr
	}
	if curr == nil || *curr != *next {
		*changed = append(*changed, name)
	}
	v := *next
	return &v
}

func applyString(curr, next *string, name string, changed *[]string) *string {
	if next == nil {
		return curr
	}
	if curr == nil || *curr != *next {
		*changed = append(*changed, name)
	}
	v := *next
	return &v
}

func applyTime(curr, next *time.Time, name string, changed *[]string) *time.Time {
	if next == nil {
		return curr
	}
	if curr == nil || !curr.Equal(*next) {
		*changed = append(*changed, name)
	}
	v := *next
	return &v
}
