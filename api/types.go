package api

import (
	"context"

	"canvas-api/domain"
)

// Storage abstracts persistence for handlers and the plan run.
type Storage interface {
	FetchTasks(ctx context.Context) ([]domain.Task, error)
	FetchBlocks(ctx context.Context) ([]domain.Block, error)
	InsertTasks(ctx context.Context, tasks []domain.Task) ([]domain.Task, error)
	UpdateTask(ctx context.Context, t domain.Task) error
	DeleteTask(ctx context.Context, blockID, id string) error
	UpsertBlock(ctx context.Context, b domain.Block) (domain.Block, error)
	DeleteBlock(ctx context.Context, id string) error
	EnqueuePlanRequest(ctx context.Context, req domain.PlanRequest) error
}

// Guard is the storage-level uniqueness backstop for planned occurrences.
type Guard interface {
	// Acquire records the identity key and returns true if it was newly added.
	Acquire(ctx context.Context, key string) (bool, error)
	// Release deletes a previously acquired key, used when persisting fails.
	Release(ctx context.Context, key string) error
}
