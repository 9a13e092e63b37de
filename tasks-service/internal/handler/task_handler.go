package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskboard/pkg/trace"
	"taskboard/tasks-service/internal/model"
	"taskboard/tasks-service/internal/repository"
	"taskboard/tasks-service/internal/service"
)

// Identity headers set by the edge proxy after authentication.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
)

type TaskHandler struct {
	tasks  *service.TaskService
	logger *zap.Logger
}

func NewTaskHandler(tasks *service.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

type createTaskRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Deadline    *string  `json:"deadline"`
	Priority    string   `json:"priority"`
	Status      string   `json:"status"`
	AssigneeIDs []string `json:"assigneeIds"`
}

type updateTaskRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Deadline    *string  `json:"deadline"`
	Priority    *string  `json:"priority"`
	Status      *string  `json:"status"`
	AssigneeIDs []string `json:"assigneeIds"`
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID := c.GetHeader(HeaderUserID)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("CreateTask: invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	priority := model.Priority(req.Priority)
	if req.Priority == "" {
		priority = model.PriorityMedium
	}
	if !priority.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid priority"})
		return
	}

	status := model.Status(req.Status)
	if req.Status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	deadline, err := parseDeadline(req.Deadline)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid deadline"})
		return
	}

	ctx := requestContext(c)
	task, err := h.tasks.Create(ctx, service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Deadline:    deadline,
		Priority:    priority,
		Status:      status,
		AssigneeIDs: req.AssigneeIDs,
		CreatedBy:   userID,
		CreatorName: c.GetHeader(HeaderUserName),
	})
	if err != nil {
		h.logger.Error("CreateTask: failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create task"})
		return
	}

	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) GetTask(c *gin.Context) {
	task, err := h.tasks.Get(requestContext(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		h.logger.Error("GetTask: failed", zap.String("task_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch task"})
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) ListTasks(c *gin.Context) {
	filters := model.TaskFilters{
		Priority:   model.Priority(c.Query("priority")),
		Status:     model.Status(c.Query("status")),
		AssigneeID: c.Query("assigneeId"),
		Search:     c.Query("search"),
		Page:       queryInt(c, "page", 1),
		Size:       queryInt(c, "size", 10),
	}

	if filters.Priority != "" && !filters.Priority.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid priority"})
		return
	}
	if filters.Status != "" && !filters.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	page, err := h.tasks.List(requestContext(c), filters)
	if err != nil {
		h.logger.Error("ListTasks: failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch tasks"})
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID := c.GetHeader(HeaderUserID)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("UpdateTask: invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := service.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		AssigneeIDs: req.AssigneeIDs,
		UpdatedBy:   userID,
		UpdaterName: c.GetHeader(HeaderUserName),
	}

	if req.Priority != nil {
		priority := model.Priority(*req.Priority)
		if !priority.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid priority"})
			return
		}
		input.Priority = &priority
	}
	if req.Status != nil {
		status := model.Status(*req.Status)
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		input.Status = &status
	}
	if req.Deadline != nil {
		deadline, err := parseDeadline(req.Deadline)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid deadline"})
			return
		}
		input.Deadline = deadline
	}

	task, err := h.tasks.Update(requestContext(c), c.Param("id"), input)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		h.logger.Error("UpdateTask: failed", zap.String("task_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update task"})
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) GetTaskHistory(c *gin.Context) {
	entries, err := h.tasks.History(requestContext(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		h.logger.Error("GetTaskHistory: failed", zap.String("task_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch task history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	if err := h.tasks.Delete(requestContext(c), c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		h.logger.Error("DeleteTask: failed", zap.String("task_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete task"})
		return
	}
	c.Status(http.StatusNoContent)
}

func requestContext(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	if cid := c.GetHeader(trace.HeaderName); cid != "" {
		ctx = trace.WithContext(ctx, cid)
	}
	return ctx
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseDeadline(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
