package mirror

import (
	"fmt"
	"sort"
)

// SkipReason explains why a plan item performs no mutation.
type SkipReason string

const (
	// SkipInSync means the destination already matches the desired event.
	SkipInSync SkipReason = "in-sync"
	// SkipWouldDelete marks an orphaned mirror block that delete-missing mode
	// would remove; with the mode off it is reported but left alone.
	SkipWouldDelete SkipReason = "would-delete"
)

// PlanItem is one reconciliation decision for a correlation key.
type PlanItem struct {
	Key string
	// Desired is nil for deletes (the source event no longer exists).
	Desired *MirroredEvent
	// Handle is set for patches, deletes and would-delete skips.
	Handle string
	// Reason is set on skips.
	Reason SkipReason
	// Diffs lists the changed fields behind a patch decision.
	Diffs []FieldDiff
	// Title is carried for reporting on deletes and would-delete skips.
	Title string
}

// Plan is the minimal idempotent set of operations that reconciles the
// destination with the desired set. The four collections are disjoint and
// ordered (desired order for inserts/patches/in-sync skips, key order for
// deletes and would-delete skips).
type Plan struct {
	Inserts []PlanItem
	Patches []PlanItem
	Deletes []PlanItem
	Skips   []PlanItem
}

// Empty reports whether the plan performs no mutations.
func (p *Plan) Empty() bool {
	return len(p.Inserts) == 0 && len(p.Patches) == 0 && len(p.Deletes) == 0
}

// Summary is a one-line accounting for logs and dry-run output.
func (p *Plan) Summary() string {
	wouldDelete := 0
	for _, s := range p.Skips {
		if s.Reason == SkipWouldDelete {
			wouldDelete++
		}
	}
	return fmt.Sprintf("inserts=%d patches=%d deletes=%d skips=%d would_delete=%d",
		len(p.Inserts), len(p.Patches), len(p.Deletes), len(p.Skips)-wouldDelete, wouldDelete)
}

// BuildPlan diffs the desired set against the destination's mirrored set.
// Destination events without the private marker are excluded from the
// existing set entirely, so they can never be patched or deleted even when a
// correlation key collides. Orphaned mirror blocks become deletes only when
// deleteMissing is set; otherwise they are recorded as would-delete skips so
// a dry run always shows the full picture.
func BuildPlan(desired []MirroredEvent, existing []Existing, deleteMissing bool) Plan {
	byKey := make(map[string]Existing, len(existing))
	for _, ex := range existing {
		if !ex.Event.Marker {
			continue
		}
		byKey[ex.Event.ExternalID] = ex
	}

	var plan Plan
	seen := make(map[string]bool, len(desired))

	for _, want := range desired {
		want := want
		key := want.ExternalID
		seen[key] = true

		ex, ok := byKey[key]
		if !ok {
			plan.Inserts = append(plan.Inserts, PlanItem{Key: key, Desired: &want})
			continue
		}

		diffs := diffEvents(ex.Event, want)
		if len(diffs) == 0 {
			plan.Skips = append(plan.Skips, PlanItem{Key: key, Desired: &want, Handle: ex.Handle, Reason: SkipInSync})
			continue
		}
		plan.Patches = append(plan.Patches, PlanItem{Key: key, Desired: &want, Handle: ex.Handle, Diffs: diffs})
	}

	// Orphans in stable key order so repeated runs produce identical plans.
	orphans := make([]string, 0)
	for key := range byKey {
		if !seen[key] {
			orphans = append(orphans, key)
		}
	}
	sort.Strings(orphans)

	for _, key := range orphans {
		ex := byKey[key]
		if !ex.Event.Marker {
			// Unmarked events never reach deletes regardless of key collisions.
			continue
		}
		item := PlanItem{Key: key, Handle: ex.Handle, Title: ex.Event.Title}
		if deleteMissing {
			plan.Deletes = append(plan.Deletes, item)
		} else {
			item.Reason = SkipWouldDelete
			plan.Skips = append(plan.Skips, item)
		}
	}

	return plan
}
