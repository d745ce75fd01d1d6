package domain

import (
	"strings"
	"time"
)

// maxOccurrencesPerSeed caps the backfill loop for a single seed task. It
// guards against a non-monotonic interval computation or a clock anomaly
// that keeps the cursor from ever reaching today; hitting the cap silently
// stops generating further occurrences for that seed.
const maxOccurrencesPerSeed = 24

// occurrenceKey identifies one task occurrence for deduplication. Two
// tasks sharing this tuple are the same occurrence regardless of id or
// status. The tuple composition is load-bearing: adding or dropping a
// field changes dedup semantics.
type occurrenceKey struct {
	blockID    string
	title      string
	recurrence Recurrence
	dueDate    string
}

func keyOf(t Task, dueDate string) occurrenceKey {
	return occurrenceKey{
		blockID:    t.BlockID,
		title:      t.Title,
		recurrence: t.Recurrence,
		dueDate:    dueDate,
	}
}

// OccurrenceKey renders the identity tuple of the task's occurrence as a
// single string, usable as an external uniqueness key (e.g. a redis SETNX
// key). The unit separator keeps titles containing punctuation unambiguous.
func (t Task) OccurrenceKey() string {
	return strings.Join([]string{t.BlockID, t.Title, string(t.Recurrence), t.DueDate}, "\x1f")
}

// PlanRecurring computes the recurring-task instances missing from the
// given snapshot. It is pure: the input is never mutated and no I/O is
// performed; persistence of the returned instances is the caller's
// responsibility.
//
// A seed is a task with status done, a recurrence other than none and a
// due date. For each seed the next due dates are walked until the first
// one on or after today, materializing every date whose occurrence key
// does not yet exist. Because the key set is threaded through the whole
// run, feeding the output back into the snapshot and planning again yields
// nothing new.
func PlanRecurring(tasks []Task, dates *Dates) []Task {
	existing := make(map[occurrenceKey]struct{}, len(tasks))
	for _, t := range tasks {
		existing[keyOf(t, t.DueDate)] = struct{}{}
	}

	today := dates.Today()
	now := dates.Now()

	var planned []Task
	for _, seed := range tasks {
		if seed.Status != StatusDone || seed.Recurrence == RecurrenceNone || seed.Recurrence == "" || seed.DueDate == "" {
			continue
		}
		cursor := seed.DueDate
		for i := 0; i < maxOccurrencesPerSeed; i++ {
			next, err := NextDue(cursor, seed.Recurrence)
			if err != nil {
				// Malformed date or unknown recurrence kind: the seed is
				// simply not eligible.
				break
			}
			if _, ok := existing[keyOf(seed, next)]; !ok {
				existing[keyOf(seed, next)] = struct{}{}
				planned = append(planned, instantiate(seed, next, now))
			}
			cursor = next
			if next >= today {
				break
			}
		}
	}
	return planned
}

// instantiate copies the seed into a fresh occurrence due on dueDate.
func instantiate(seed Task, dueDate string, now time.Time) Task {
	inst := seed
	inst.ID = ""
	inst.Status = StatusTodo
	inst.DueDate = dueDate
	inst.Checklist = resetChecklist(seed.Checklist)
	inst.CreatedAt = now
	inst.UpdatedAt = now
	inst.CompletedAt = nil
	return inst
}

func resetChecklist(items []ChecklistItem) []ChecklistItem {
	if items == nil {
		return nil
	}
	out := make([]ChecklistItem, len(items))
	for i, it := range items {
		out[i] = ChecklistItem{Label: it.Label}
	}
	return out
}
