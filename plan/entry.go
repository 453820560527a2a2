/*
Package plan allocates monthly forecasts into persisted plan rows.

PURPOSE:
  For each company the allocator forecasts next month's turnover and shift
  count, splits both across operators by their weighted historical share,
  and adds one global row per management role. Regeneration never touches
  rows a person has locked by editing them.

KEY CONCEPTS IN THIS FILE (entry.go):
  Row:       key, targets and metadata of one plan row
  Entry:     a row tagged with its provenance, either Locked or Generated
  Locked:    manually edited, survives every regeneration verbatim
  Generated: produced by the allocator, replaced on the next run

  The merge rule is carried by the type: Merge only ever copies a Locked
  entry forward, and a Generated entry can only come from fresh output.

SEE ALSO:
  - allocator.go: per-company forecast and operator distribution
  - merge.go: replace-or-preserve by key, identity validation
  - planner.go: snapshot fetch, merge, lock-checked writes
*/
package plan

import (
	"time"

	"github.com/warp/payplan/generic"
)

// =============================================================================
// ROW
// =============================================================================

type Row struct {
	Key      generic.PlanKey
	Targets  generic.Targets
	Metadata map[string]string
}

func (r Row) clone() Row {
	if r.Metadata != nil {
		meta := make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		r.Metadata = meta
	}
	return r
}

// =============================================================================
// ENTRY - Locked | Generated
// =============================================================================

// Entry is sealed: Locked and Generated are its only implementations.
type Entry interface {
	Row() Row
	IsLocked() bool
	entry()
}

// Locked is a manually edited row.
type Locked struct {
	row Row
}

// Generated is an allocator row.
type Generated struct {
	row Row
}

func Lock(r Row) Locked         { return Locked{row: r.clone()} }
func Generate(r Row) Generated  { return Generated{row: r.clone()} }
func (l Locked) Row() Row       { return l.row.clone() }
func (l Locked) IsLocked() bool { return true }
func (Locked) entry()           {}

func (g Generated) Row() Row       { return g.row.clone() }
func (g Generated) IsLocked() bool { return false }
func (Generated) entry()           {}

// =============================================================================
// RECORD CONVERSION
// =============================================================================

// FromRecord tags a stored record by its locked flag.
func FromRecord(rec generic.PlanRecord) Entry {
	r := Row{Key: rec.Key, Targets: rec.Targets, Metadata: rec.Metadata}
	if rec.Locked {
		return Lock(r)
	}
	return Generate(r)
}

func FromRecords(recs []generic.PlanRecord) []Entry {
	out := make([]Entry, len(recs))
	for i, rec := range recs {
		out[i] = FromRecord(rec)
	}
	return out
}

// ToRecord is the stored form of e, stamped with now.
func ToRecord(e Entry, now time.Time) generic.PlanRecord {
	r := e.Row()
	return generic.PlanRecord{
		Key:       r.Key,
		Targets:   r.Targets,
		Metadata:  r.Metadata,
		Locked:    e.IsLocked(),
		UpdatedAt: now.UTC(),
	}
}
