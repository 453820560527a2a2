package plan

import (
	"sort"

	"github.com/warp/payplan/generic"
)

// Merge combines fresh allocator rows with the month's previous entries.
//
// A previous Locked entry replaces the fresh row with the same key and is
// kept even when the allocator no longer produces that key. Previous
// Generated entries are dropped; their fresh counterparts supersede them.
// Output follows fresh order, then the leftover locked entries by key.
func Merge(previous []Entry, fresh []Row) []Entry {
	locked := make(map[generic.PlanIdentity]Locked)
	for _, e := range previous {
		if l, ok := e.(Locked); ok {
			locked[l.row.Key.Identity()] = l
		}
	}

	out := make([]Entry, 0, len(fresh)+len(locked))
	used := make(map[generic.PlanIdentity]bool, len(locked))
	for _, r := range fresh {
		k := r.Key.Identity()
		if l, ok := locked[k]; ok {
			out = append(out, l)
			used[k] = true
			continue
		}
		out = append(out, Generate(r))
	}

	var rest []Locked
	for k, l := range locked {
		if !used[k] {
			rest = append(rest, l)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].row.Key.Less(rest[j].row.Key) })
	for _, l := range rest {
		out = append(out, l)
	}
	return out
}

// Validate rejects malformed keys and duplicate identities. A merged plan
// that fails here must not be written.
func Validate(entries []Entry) error {
	seen := make(map[generic.PlanIdentity]bool, len(entries))
	for _, e := range entries {
		key := e.Row().Key
		if err := key.Validate(); err != nil {
			return err
		}
		k := key.Identity()
		if seen[k] {
			return &generic.PlanConflictError{Key: key, Reason: "duplicate key in merged plan"}
		}
		seen[k] = true
	}
	return nil
}

// Counts tallies entries by lock state.
func Counts(entries []Entry) (locked, generated int) {
	for _, e := range entries {
		if e.IsLocked() {
			locked++
		} else {
			generated++
		}
	}
	return locked, generated
}
