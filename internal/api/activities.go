package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"astro/internal/activity"
	"astro/internal/models"
	"astro/internal/store"
)

// ActivityRequest 定义了创建活动的 JSON 结构。
type ActivityRequest struct {
	Name     string            `json:"name" binding:"required"`
	Prompt   string            `json:"prompt"`
	Schedule string            `json:"schedule"`
	Tasks    []store.TaskInput `json:"tasks"`
}

// ActivityUpdateRequest 定义了更新活动的 JSON 结构。
// Tasks 为 null 时保留现有任务链。
type ActivityUpdateRequest struct {
	Name     string            `json:"name" binding:"required"`
	Prompt   string            `json:"prompt"`
	Schedule string            `json:"schedule"`
	Tasks    []store.TaskInput `json:"tasks"`
}

// validSchedule 校验调度方式取值。
func validSchedule(schedule string) bool {
	switch schedule {
	case "", models.ScheduleManual, models.ScheduleHourly, models.ScheduleDaily, models.ScheduleWeekly:
		return true
	}
	return false
}

// ListActivities 返回全部活动及其任务链。
func (h *Handler) ListActivities(c *gin.Context) {
	activities, err := h.store.ListActivities()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, activities)
}

// GetActivity 返回单个活动。
func (h *Handler) GetActivity(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	act, err := h.store.GetActivity(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if act == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "activity not found"})
		return
	}
	c.JSON(http.StatusOK, act)
}

// CreateActivity 创建活动及其任务链。
func (h *Handler) CreateActivity(c *gin.Context) {
	var req ActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validSchedule(req.Schedule) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "schedule must be one of manual, hourly, daily, weekly"})
		return
	}
	act := &models.Activity{
		Name:     req.Name,
		Prompt:   req.Prompt,
		Schedule: req.Schedule,
	}
	if act.Schedule == "" {
		act.Schedule = models.ScheduleManual
	}
	if err := h.store.CreateActivity(act, req.Tasks); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	created, err := h.store.GetActivity(act.ID)
	if err != nil || created == nil {
		c.JSON(http.StatusCreated, act)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateActivity 更新活动，任务链整表替换。
func (h *Handler) UpdateActivity(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ActivityUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validSchedule(req.Schedule) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "schedule must be one of manual, hourly, daily, weekly"})
		return
	}
	act, err := h.store.GetActivity(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if act == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "activity not found"})
		return
	}
	act.Name = req.Name
	act.Prompt = req.Prompt
	if req.Schedule != "" {
		act.Schedule = req.Schedule
	}
	if err := h.store.UpdateActivity(act, req.Tasks); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	updated, err := h.store.GetActivity(id)
	if err != nil || updated == nil {
		c.JSON(http.StatusOK, act)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteActivity 删除活动及其运行历史。
func (h *Handler) DeleteActivity(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteActivity(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// RunActivity 在后台启动一次运行，立即返回。
// 同一活动已在运行时返回 409。
func (h *Handler) RunActivity(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	act, err := h.store.GetActivity(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if act == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "activity not found"})
		return
	}
	if len(act.Tasks) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "activity has no tasks"})
		return
	}

	if h.runner.Busy(id) {
		c.JSON(http.StatusConflict, gin.H{"error": activity.ErrBusy.Error()})
		return
	}
	go func() {
		if _, err := h.runner.Run(context.Background(), id); err != nil && !errors.Is(err, activity.ErrBusy) {
			h.log.Error("Activity run failed: " + err.Error())
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"ok": true, "status": "started"})
}

// ListActivityRuns 返回活动的运行历史。
func (h *Handler) ListActivityRuns(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	runs, err := h.store.ListRuns(id, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, runs)
}

// GetActivityRun 返回运行记录及按顺序排列的产出，供界面轮询。
func (h *Handler) GetActivityRun(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	run, err := h.store.GetRun(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	responses := run.Responses
	if responses == nil {
		responses = []models.ActivityResponse{}
	}
	c.JSON(http.StatusOK, gin.H{"run": run, "responses": responses})
}

// DeleteActivityRun 删除一条运行记录。
func (h *Handler) DeleteActivityRun(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteRun(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ClearActivityRuns 清空活动的全部运行历史。
func (h *Handler) ClearActivityRuns(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.store.ClearRuns(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
