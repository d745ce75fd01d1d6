package domain

import "time"

// Status is the workflow state of a task on the board.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

// Recurrence is the interval kind a completed task re-spawns on.
// RecurrenceNone means the task never recurs.
type Recurrence string

const (
	RecurrenceNone     Recurrence = "none"
	RecurrenceDaily    Recurrence = "daily"
	RecurrenceWeekly   Recurrence = "weekly"
	RecurrenceBiweekly Recurrence = "biweekly"
	RecurrenceMonthly  Recurrence = "monthly"
	RecurrenceYearly   Recurrence = "yearly"
)

// ChecklistItem is a single line inside a task checklist.
type ChecklistItem struct {
	Label string `json:"label"`
	Done  bool   `json:"done"`
}

// Task represents a single board item owned by a business block.
// DueDate is a civil date string (YYYY-MM-DD); empty means no due date.
type Task struct {
	ID         string          `json:"id,omitempty"`
	BlockID    string          `json:"blockId"`
	Title      string          `json:"title"`
	Notes      string          `json:"notes,omitempty"`
	Status     Status          `json:"status"`
	Recurrence Recurrence      `json:"recurrence,omitempty"`
	DueDate    string          `json:"dueDate,omitempty"`
	Checklist  []ChecklistItem `json:"checklist,omitempty"`
	Owner      string          `json:"owner,omitempty"`
	Priority   string          `json:"priority,omitempty"`
	Order      int             `json:"order"`
	DependsOn  string          `json:"dependsOnTaskId,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Block is a business category (website, suppliers, ads, ...) that owns tasks.
type Block struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Icon  string `json:"icon,omitempty"`
	Order int    `json:"order"`
}

// PlanRequest asks the plan-queue consumer to run recurrence planning once.
type PlanRequest struct {
	ID          string `json:"id"`
	RequestedBy string `json:"requestedBy"`
	Time        int64  `json:"time"`
}
