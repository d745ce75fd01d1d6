package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/google/uuid"

	"canvas-api/domain"
)

const blocksPartition = "block"

// Storage provides access to underlying persistence mechanisms.
type Storage struct {
	taskTable  *aztables.Client
	blockTable *aztables.Client
	planQueue  *azqueue.QueueClient
}

// New creates a Storage instance from the given connection string.
func New(connStr, tasksTable, blocksTable, planQueue string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	tt := svc.NewClient(tasksTable)
	bt := svc.NewClient(blocksTable)
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	pq, err := azqueue.NewQueueClientFromConnectionString(connStr, planQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{taskTable: tt, blockTable: bt, planQueue: pq}, nil
}

type taskEntity struct {
	aztables.Entity
	Title       string `json:"Title"`
	Notes       string `json:"Notes"`
	Status      string `json:"Status"`
	Recurrence  string `json:"Recurrence"`
	DueDate     string `json:"DueDate"`
	Checklist   string `json:"Checklist"`
	Owner       string `json:"Owner"`
	Priority    string `json:"Priority"`
	Order       int    `json:"Order"`
	DependsOn   string `json:"DependsOn"`
	CreatedAt   string `json:"CreatedAt"`
	UpdatedAt   string `json:"UpdatedAt"`
	CompletedAt string `json:"CompletedAt"`
}

type blockEntity struct {
	aztables.Entity
	Name  string `json:"Name"`
	Icon  string `json:"Icon"`
	Order int    `json:"Order"`
}

func entityFromTask(t domain.Task) (taskEntity, error) {
	ent := taskEntity{
		Entity:     aztables.Entity{PartitionKey: t.BlockID, RowKey: t.ID},
		Title:      t.Title,
		Notes:      t.Notes,
		Status:     string(t.Status),
		Recurrence: string(t.Recurrence),
		DueDate:    t.DueDate,
		Owner:      t.Owner,
		Priority:   t.Priority,
		Order:      t.Order,
		DependsOn:  t.DependsOn,
		CreatedAt:  t.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:  t.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if t.CompletedAt != nil {
		ent.CompletedAt = t.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	if len(t.Checklist) > 0 {
		data, err := json.Marshal(t.Checklist)
		if err != nil {
			return taskEntity{}, err
		}
		ent.Checklist = string(data)
	}
	return ent, nil
}

func taskFromEntity(ent taskEntity) (domain.Task, error) {
	t := domain.Task{
		ID:         ent.RowKey,
		BlockID:    ent.PartitionKey,
		Title:      ent.Title,
		Notes:      ent.Notes,
		Status:     domain.Status(ent.Status),
		Recurrence: domain.Recurrence(ent.Recurrence),
		DueDate:    ent.DueDate,
		Owner:      ent.Owner,
		Priority:   ent.Priority,
		Order:      ent.Order,
		DependsOn:  ent.DependsOn,
	}
	if ent.Checklist != "" {
		if err := json.Unmarshal([]byte(ent.Checklist), &t.Checklist); err != nil {
			return domain.Task{}, err
		}
	}
	if ent.CreatedAt != "" {
		ts, err := time.Parse(time.RFC3339Nano, ent.CreatedAt)
		if err != nil {
			return domain.Task{}, err
		}
		t.CreatedAt = ts
	}
	if ent.UpdatedAt != "" {
		ts, err := time.Parse(time.RFC3339Nano, ent.UpdatedAt)
		if err != nil {
			return domain.Task{}, err
		}
		t.UpdatedAt = ts
	}
	if ent.CompletedAt != "" {
		ts, err := time.Parse(time.RFC3339Nano, ent.CompletedAt)
		if err != nil {
			return domain.Task{}, err
		}
		t.CompletedAt = &ts
	}
	return t, nil
}

// FetchTasks retrieves every task on the board across all blocks.
func (s *Storage) FetchTasks(ctx context.Context) ([]domain.Task, error) {
	pager := s.taskTable.NewListEntitiesPager(nil)
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent taskEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			task, err := taskFromEntity(ent)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

// InsertTasks persists the given tasks, assigning ids to those without one.
// The stored tasks are returned with their ids filled in.
func (s *Storage) InsertTasks(ctx context.Context, tasks []domain.Task) ([]domain.Task, error) {
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		ent, err := entityFromTask(t)
		if err != nil {
			return out, err
		}
		data, err := json.Marshal(ent)
		if err != nil {
			return out, err
		}
		if _, err := s.taskTable.AddEntity(ctx, data, nil); err != nil {
			return out, err
		}
		out = append(out, t)
	}
	return out, nil
}

// UpdateTask replaces the stored task. The block (partition) of a task is
// immutable; moving a task between blocks is a delete plus insert.
func (s *Storage) UpdateTask(ctx context.Context, t domain.Task) error {
	ent, err := entityFromTask(t)
	if err != nil {
		return err
	}
	data, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.taskTable.UpsertEntity(ctx, data, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

// DeleteTask removes a task from its block.
func (s *Storage) DeleteTask(ctx context.Context, blockID, id string) error {
	_, err := s.taskTable.DeleteEntity(ctx, blockID, id, nil)
	return err
}

// FetchBlocks retrieves all business blocks.
func (s *Storage) FetchBlocks(ctx context.Context) ([]domain.Block, error) {
	filter := "PartitionKey eq '" + blocksPartition + "'"
	pager := s.blockTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	blocks := []domain.Block{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent blockEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			blocks = append(blocks, domain.Block{
				ID:    ent.RowKey,
				Name:  ent.Name,
				Icon:  ent.Icon,
				Order: ent.Order,
			})
		}
	}
	return blocks, nil
}

// UpsertBlock creates or replaces a block, assigning an id when missing.
func (s *Storage) UpsertBlock(ctx context.Context, b domain.Block) (domain.Block, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	ent := blockEntity{
		Entity: aztables.Entity{PartitionKey: blocksPartition, RowKey: b.ID},
		Name:   b.Name,
		Icon:   b.Icon,
		Order:  b.Order,
	}
	data, err := json.Marshal(ent)
	if err != nil {
		return domain.Block{}, err
	}
	if _, err := s.blockTable.UpsertEntity(ctx, data, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace}); err != nil {
		return domain.Block{}, err
	}
	return b, nil
}

// DeleteBlock removes a block. Tasks inside it are left untouched; the
// dashboard hides them until they are reassigned.
func (s *Storage) DeleteBlock(ctx context.Context, id string) error {
	_, err := s.blockTable.DeleteEntity(ctx, blocksPartition, id, nil)
	return err
}

// EnqueuePlanRequest sends a recurrence-planning request to the plan queue.
func (s *Storage) EnqueuePlanRequest(ctx context.Context, req domain.PlanRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = s.planQueue.EnqueueMessage(ctx, string(data), nil)
	return err
}
