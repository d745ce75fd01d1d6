package api

import (
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"canvas-api/domain"
)

// Register wires up all API routes on the provided Echo instance. Every
// dashboard route lives under the secret path segment; only the health
// probe is reachable without it.
func Register(e *echo.Echo, store Storage, dates *domain.Dates, secret string, logger *log.Logger) {
	g := e.Group("/:secret/api", SecretGate(secret))
	g.GET("/board", getBoard(store, dates))
	g.GET("/tasks", getTasks(store))
	g.POST("/tasks", postTask(store, dates))
	g.PUT("/tasks/:id", putTask(store, dates))
	g.DELETE("/tasks/:id", deleteTask(store))
	g.GET("/blocks", getBlocks(store))
	g.POST("/blocks", postBlock(store))
	g.DELETE("/blocks/:id", deleteBlock(store))
	g.POST("/plan", postPlan(store, logger))

	e.GET("/healthz", healthz())
}

type boardTask struct {
	domain.Task
	Overdue bool `json:"overdue"`
	DueSoon bool `json:"dueSoon"`
}

type boardResponse struct {
	Blocks    []domain.Block `json:"blocks"`
	Tasks     []boardTask    `json:"tasks"`
	Today     string         `json:"today"`
	WeekStart string         `json:"weekStart"`
	WeekEnd   string         `json:"weekEnd"`
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getBoard(store Storage, dates *domain.Dates) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		blocks, err := store.FetchBlocks(ctx)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		tasks, err := store.FetchTasks(ctx)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		weekStart, weekEnd := dates.WeekBounds()
		resp := boardResponse{
			Blocks:    blocks,
			Tasks:     make([]boardTask, 0, len(tasks)),
			Today:     dates.Today(),
			WeekStart: weekStart,
			WeekEnd:   weekEnd,
		}
		for _, t := range tasks {
			resp.Tasks = append(resp.Tasks, boardTask{
				Task:    t,
				Overdue: t.Status != domain.StatusDone && dates.IsOverdue(t.DueDate),
				DueSoon: t.Status != domain.StatusDone && dates.IsDueSoon(t.DueDate),
			})
		}
		return c.JSON(http.StatusOK, resp)
	}
}

func getTasks(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		tasks, err := store.FetchTasks(c.Request().Context())
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, tasks)
	}
}

func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, postBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func validTaskDates(t domain.Task) bool {
	if t.DueDate == "" {
		return true
	}
	_, err := time.Parse("2006-01-02", t.DueDate)
	return err == nil
}

func postTask(store Storage, dates *domain.Dates) echo.HandlerFunc {
	return func(c echo.Context) error {
		var task domain.Task
		if err := decodeBody(c, &task); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if task.Title == "" || task.BlockID == "" {
			return c.String(http.StatusBadRequest, "title and blockId are required")
		}
		if !validTaskDates(task) {
			return c.String(http.StatusBadRequest, "dueDate must be YYYY-MM-DD")
		}
		if task.Status == "" {
			task.Status = domain.StatusTodo
		}
		if task.Recurrence == "" {
			task.Recurrence = domain.RecurrenceNone
		}
		now := dates.Now()
		task.ID = ""
		task.CreatedAt = now
		task.UpdatedAt = now
		task.CompletedAt = nil
		if task.Status == domain.StatusDone {
			task.CompletedAt = &now
		}

		created, err := store.InsertTasks(c.Request().Context(), []domain.Task{task})
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusCreated, created[0])
	}
}

func putTask(store Storage, dates *domain.Dates) echo.HandlerFunc {
	return func(c echo.Context) error {
		var task domain.Task
		if err := decodeBody(c, &task); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		task.ID = c.Param("id")
		if task.ID == "" || task.Title == "" || task.BlockID == "" {
			return c.String(http.StatusBadRequest, "id, title and blockId are required")
		}
		if !validTaskDates(task) {
			return c.String(http.StatusBadRequest, "dueDate must be YYYY-MM-DD")
		}
		now := dates.Now()
		task.UpdatedAt = now
		switch {
		case task.Status == domain.StatusDone && task.CompletedAt == nil:
			task.CompletedAt = &now
		case task.Status != domain.StatusDone:
			task.CompletedAt = nil
		}

		if err := store.UpdateTask(c.Request().Context(), task); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, task)
	}
}

func deleteTask(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		blockID := c.QueryParam("blockId")
		if id == "" || blockID == "" {
			return c.String(http.StatusBadRequest, "id and blockId are required")
		}
		if err := store.DeleteTask(c.Request().Context(), blockID, id); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getBlocks(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		blocks, err := store.FetchBlocks(c.Request().Context())
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, blocks)
	}
}

func postBlock(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		var block domain.Block
		if err := decodeBody(c, &block); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if block.Name == "" {
			return c.String(http.StatusBadRequest, "name is required")
		}
		saved, err := store.UpsertBlock(c.Request().Context(), block)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusCreated, saved)
	}
}

func deleteBlock(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Param("id")
		if id == "" {
			return c.String(http.StatusBadRequest, "id is required")
		}
		if err := store.DeleteBlock(c.Request().Context(), id); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// postPlan is the cron-style trigger for recurrence planning. It only
// enqueues; the single plan-queue consumer serializes the actual runs so
// two triggers can never plan concurrently.
func postPlan(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := domain.PlanRequest{
			ID:          uuid.NewString(),
			RequestedBy: "api",
			Time:        time.Now().UnixNano(),
		}
		if err := store.EnqueuePlanRequest(c.Request().Context(), req); err != nil {
			logger.WithField("error", err).Error("failed to enqueue plan request")
			return c.JSON(http.StatusInternalServerError, planResponse{Error: "failed to enqueue plan request"})
		}
		return c.JSON(http.StatusAccepted, planResponse{RequestID: req.ID})
	}
}
