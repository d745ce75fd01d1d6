package storage

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"canvas-api/domain"
)

type stubBackend struct {
	fetchTasksFn  func(ctx context.Context) ([]domain.Task, error)
	fetchBlocksFn func(ctx context.Context) ([]domain.Block, error)
	insertTasksFn func(ctx context.Context, tasks []domain.Task) ([]domain.Task, error)
	updateTaskFn  func(ctx context.Context, t domain.Task) error
	deleteTaskFn  func(ctx context.Context, blockID, id string) error
	upsertBlockFn func(ctx context.Context, b domain.Block) (domain.Block, error)
	deleteBlockFn func(ctx context.Context, id string) error
	enqueueFn     func(ctx context.Context, req domain.PlanRequest) error
}

func (s *stubBackend) FetchTasks(ctx context.Context) ([]domain.Task, error) {
	if s.fetchTasksFn == nil {
		return nil, errors.New("unexpected FetchTasks call")
	}
	return s.fetchTasksFn(ctx)
}

func (s *stubBackend) FetchBlocks(ctx context.Context) ([]domain.Block, error) {
	if s.fetchBlocksFn == nil {
		return nil, errors.New("unexpected FetchBlocks call")
	}
	return s.fetchBlocksFn(ctx)
}

func (s *stubBackend) InsertTasks(ctx context.Context, tasks []domain.Task) ([]domain.Task, error) {
	if s.insertTasksFn == nil {
		return nil, errors.New("unexpected InsertTasks call")
	}
	return s.insertTasksFn(ctx, tasks)
}

func (s *stubBackend) UpdateTask(ctx context.Context, t domain.Task) error {
	if s.updateTaskFn == nil {
		return errors.New("unexpected UpdateTask call")
	}
	return s.updateTaskFn(ctx, t)
}

func (s *stubBackend) DeleteTask(ctx context.Context, blockID, id string) error {
	if s.deleteTaskFn == nil {
		return errors.New("unexpected DeleteTask call")
	}
	return s.deleteTaskFn(ctx, blockID, id)
}

func (s *stubBackend) UpsertBlock(ctx context.Context, b domain.Block) (domain.Block, error) {
	if s.upsertBlockFn == nil {
		return domain.Block{}, errors.New("unexpected UpsertBlock call")
	}
	return s.upsertBlockFn(ctx, b)
}

func (s *stubBackend) DeleteBlock(ctx context.Context, id string) error {
	if s.deleteBlockFn == nil {
		return errors.New("unexpected DeleteBlock call")
	}
	return s.deleteBlockFn(ctx, id)
}

func (s *stubBackend) EnqueuePlanRequest(ctx context.Context, req domain.PlanRequest) error {
	if s.enqueueFn == nil {
		return errors.New("unexpected EnqueuePlanRequest call")
	}
	return s.enqueueFn(ctx, req)
}

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCacheFetchTasksMissThenHit(t *testing.T) {
	client := testRedis(t)
	ctx := context.Background()
	expected := []domain.Task{{ID: "t1", BlockID: "b1", Title: "Restock", Status: domain.StatusTodo}}

	var calls int
	cache := NewCache(&stubBackend{
		fetchTasksFn: func(ctx context.Context) ([]domain.Task, error) {
			calls++
			return append([]domain.Task(nil), expected...), nil
		},
	}, client, time.Minute)

	tasks, err := cache.FetchTasks(ctx)
	if err != nil {
		t.Fatalf("fetch tasks: %v", err)
	}
	if !reflect.DeepEqual(tasks, expected) {
		t.Fatalf("unexpected tasks: %#v", tasks)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call to backend, got %d", calls)
	}

	tasks, err = cache.FetchTasks(ctx)
	if err != nil {
		t.Fatalf("fetch tasks (cached): %v", err)
	}
	if !reflect.DeepEqual(tasks, expected) {
		t.Fatalf("unexpected cached tasks: %#v", tasks)
	}
	if calls != 1 {
		t.Fatalf("expected cache hit to skip backend, got %d calls", calls)
	}
}

func TestCacheFetchBlocksMissThenHit(t *testing.T) {
	client := testRedis(t)
	ctx := context.Background()
	expected := []domain.Block{{ID: "b1", Name: "Suppliers", Icon: "truck", Order: 1}}

	var calls int
	cache := NewCache(&stubBackend{
		fetchBlocksFn: func(ctx context.Context) ([]domain.Block, error) {
			calls++
			return append([]domain.Block(nil), expected...), nil
		},
	}, client, time.Minute)

	for i := 0; i < 2; i++ {
		blocks, err := cache.FetchBlocks(ctx)
		if err != nil {
			t.Fatalf("fetch blocks: %v", err)
		}
		if !reflect.DeepEqual(blocks, expected) {
			t.Fatalf("unexpected blocks: %#v", blocks)
		}
	}
	if calls != 1 {
		t.Fatalf("expected 1 call to backend, got %d", calls)
	}
}

func TestCacheInsertTasksEvictsTaskCache(t *testing.T) {
	client := testRedis(t)
	ctx := context.Background()

	var fetches int
	cache := NewCache(&stubBackend{
		fetchTasksFn: func(ctx context.Context) ([]domain.Task, error) {
			fetches++
			return []domain.Task{{ID: "t1", BlockID: "b1", Title: "Restock"}}, nil
		},
		insertTasksFn: func(ctx context.Context, tasks []domain.Task) ([]domain.Task, error) {
			out := make([]domain.Task, len(tasks))
			copy(out, tasks)
			for i := range out {
				out[i].ID = "assigned"
			}
			return out, nil
		},
	}, client, time.Minute)

	if _, err := cache.FetchTasks(ctx); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if _, err := cache.InsertTasks(ctx, []domain.Task{{BlockID: "b1", Title: "New"}}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := cache.FetchTasks(ctx); err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if fetches != 2 {
		t.Fatalf("expected insert to evict the cache, got %d backend fetches", fetches)
	}
}

func TestCacheUpdateAndDeleteEvict(t *testing.T) {
	client := testRedis(t)
	ctx := context.Background()

	var fetches int
	cache := NewCache(&stubBackend{
		fetchTasksFn: func(ctx context.Context) ([]domain.Task, error) {
			fetches++
			return []domain.Task{}, nil
		},
		updateTaskFn: func(ctx context.Context, task domain.Task) error { return nil },
		deleteTaskFn: func(ctx context.Context, blockID, id string) error { return nil },
	}, client, time.Minute)

	if _, err := cache.FetchTasks(ctx); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if err := cache.UpdateTask(ctx, domain.Task{ID: "t1", BlockID: "b1"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := cache.FetchTasks(ctx); err != nil {
		t.Fatalf("refetch after update: %v", err)
	}
	if err := cache.DeleteTask(ctx, "b1", "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := cache.FetchTasks(ctx); err != nil {
		t.Fatalf("refetch after delete: %v", err)
	}
	if fetches != 3 {
		t.Fatalf("expected each write to evict, got %d backend fetches", fetches)
	}
}

func TestCacheUpdateFailureKeepsCache(t *testing.T) {
	client := testRedis(t)
	ctx := context.Background()

	var fetches int
	cache := NewCache(&stubBackend{
		fetchTasksFn: func(ctx context.Context) ([]domain.Task, error) {
			fetches++
			return []domain.Task{}, nil
		},
		updateTaskFn: func(ctx context.Context, task domain.Task) error {
			return errors.New("table unavailable")
		},
	}, client, time.Minute)

	if _, err := cache.FetchTasks(ctx); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if err := cache.UpdateTask(ctx, domain.Task{ID: "t1", BlockID: "b1"}); err == nil {
		t.Fatalf("expected update error")
	}
	if _, err := cache.FetchTasks(ctx); err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if fetches != 1 {
		t.Fatalf("expected failed update to keep cache, got %d backend fetches", fetches)
	}
}

func TestCacheNilRedisFallsThrough(t *testing.T) {
	ctx := context.Background()
	var calls int
	cache := NewCache(&stubBackend{
		fetchTasksFn: func(ctx context.Context) ([]domain.Task, error) {
			calls++
			return []domain.Task{}, nil
		},
	}, nil, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := cache.FetchTasks(ctx); err != nil {
			t.Fatalf("fetch: %v", err)
		}
	}
	if calls != 2 {
		t.Fatalf("expected no caching without redis, got %d calls", calls)
	}
}
