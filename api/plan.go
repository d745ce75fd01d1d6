package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"canvas-api/domain"
)

// RunPlan executes one recurrence-planning pass: snapshot the board, plan
// missing occurrences, filter them through the occurrence guard and insert
// the survivors. Callers must not run two passes concurrently; the plan
// queue consumer is the single caller in production.
//
// It returns the number of occurrences persisted. Errors are surfaced
// unmodified so the trigger can decide whether to retry the whole run.
func RunPlan(ctx context.Context, store Storage, guard Guard, dates *domain.Dates, logger *log.Logger) (inserted int, err error) {
	metrics, ctx := newPlanRunMetrics(ctx, logger)
	defer func() {
		metrics.Log(err)
	}()

	fetchStart := time.Now()
	snapshot, fetchErr := store.FetchTasks(ctx)
	metrics.ObserveFetch(time.Since(fetchStart))
	if fetchErr != nil {
		metrics.SetErrorStage("fetch")
		err = fetchErr
		return 0, err
	}
	metrics.SetSnapshotSize(len(snapshot))

	planStart := time.Now()
	planned := domain.PlanRecurring(snapshot, dates)
	metrics.ObservePlan(time.Since(planStart))

	accepted := make([]domain.Task, 0, len(planned))
	acquired := make([]string, 0, len(planned))
	skipped := 0
	for _, inst := range planned {
		key := inst.OccurrenceKey()
		ok, guardErr := guard.Acquire(ctx, key)
		if guardErr != nil {
			metrics.SetErrorStage("guard")
			releaseKeys(ctx, guard, acquired, logger)
			err = guardErr
			return 0, err
		}
		if !ok {
			// A concurrent or recent run already claimed this occurrence.
			skipped++
			continue
		}
		acquired = append(acquired, key)
		accepted = append(accepted, inst)
	}
	metrics.SetSkipped(skipped)

	if len(accepted) == 0 {
		return 0, nil
	}

	insertStart := time.Now()
	stored, insertErr := store.InsertTasks(ctx, accepted)
	metrics.ObserveInsert(time.Since(insertStart))
	metrics.SetPlanned(len(stored))
	if insertErr != nil {
		metrics.SetErrorStage("insert")
		// InsertTasks persists sequentially and reports what made it in;
		// free the keys of everything that did not so a later run retries.
		releaseKeys(ctx, guard, acquired[len(stored):], logger)
		err = insertErr
		return len(stored), err
	}
	return len(stored), nil
}

func releaseKeys(ctx context.Context, guard Guard, keys []string, logger *log.Logger) {
	for _, key := range keys {
		if err := guard.Release(ctx, key); err != nil && logger != nil {
			logger.WithFields(log.Fields{"key": key, "error": err}).Error("occurrence guard rollback failed")
		}
	}
}
