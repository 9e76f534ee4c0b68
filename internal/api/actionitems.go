package api

import (
	"errors"
	"net/http"
	"path"
	"time"

	"github.com/gin-gonic/gin"

	"astro/internal/models"
	"astro/internal/store"
)

// ActionItemRequest 定义了创建待办事项的 JSON 结构。
type ActionItemRequest struct {
	Title      string  `json:"title" binding:"required"`
	Hot        bool    `json:"hot"`
	DueDate    *string `json:"due_date"`
	CategoryID *uint   `json:"category_id"`
}

// ActionItemUpdateRequest 定义了更新待办事项的 JSON 结构。
type ActionItemUpdateRequest struct {
	Title      string  `json:"title" binding:"required"`
	Hot        bool    `json:"hot"`
	Completed  bool    `json:"completed"`
	DueDate    *string `json:"due_date"`
	CategoryID *uint   `json:"category_id"`
}

// ActionItemLinkRequest 定义了把待办事项关联到笔记或文档的 JSON 结构。
type ActionItemLinkRequest struct {
	NoteID     *uint `json:"note_id"`
	DocumentID *uint `json:"document_id"`
}

// linkView 在关联记录上附加展示名，供列表界面直接使用。
type linkView struct {
	models.ActionItemLink
	DisplayName string `json:"display_name"`
}

// parseDueDate 解析 YYYY-MM-DD 格式的截止日期。
func parseDueDate(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *raw)
	if err != nil {
		return nil, errors.New("due_date must be formatted as YYYY-MM-DD")
	}
	return &t, nil
}

// ListActionItems 返回当前 Universe 下的待办事项。
// 默认隐藏已完成的，show_completed=true 时包含。
func (h *Handler) ListActionItems(c *gin.Context) {
	universeID := h.universeID(c)
	includeCompleted := c.Query("show_completed") == "true"
	items, err := h.store.ListActionItems(universeID, includeCompleted)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, items)
}

// CreateActionItem 新建待办事项并写入向量库。
func (h *Handler) CreateActionItem(c *gin.Context) {
	var req ActionItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item := &models.ActionItem{
		Title:      req.Title,
		Hot:        req.Hot,
		DueDate:    dueDate,
		CategoryID: req.CategoryID,
		UniverseID: h.universeID(c),
	}
	if err := h.store.CreateActionItem(item); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.vectorizeActionItem(c.Request.Context(), item)
	c.JSON(http.StatusCreated, item)
}

// UpdateActionItem 更新待办事项并重新写入向量库。
func (h *Handler) UpdateActionItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ActionItemUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item, err := h.store.GetActionItem(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "action item not found"})
		return
	}
	item.Title = req.Title
	item.Hot = req.Hot
	item.Completed = req.Completed
	item.DueDate = dueDate
	item.CategoryID = req.CategoryID
	if err := h.store.UpdateActionItem(item); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.vectorizeActionItem(c.Request.Context(), item)
	c.JSON(http.StatusOK, item)
}

// DeleteActionItem 删除待办事项及其分块。
func (h *Handler) DeleteActionItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteActionItem(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.dropChunks(c.Request.Context(), models.EntityActionItem, int64(id))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ListActionItemLinks 返回待办事项的关联记录，附带展示名。
func (h *Handler) ListActionItemLinks(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	item, err := h.store.GetActionItem(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "action item not found"})
		return
	}
	views := make([]linkView, 0, len(item.Links))
	for _, link := range item.Links {
		views = append(views, linkView{ActionItemLink: link, DisplayName: h.linkDisplayName(link)})
	}
	c.JSON(http.StatusOK, views)
}

// linkDisplayName 解析一条关联记录的展示名。
func (h *Handler) linkDisplayName(link models.ActionItemLink) string {
	if link.NoteID != nil {
		note, err := h.store.GetNote(*link.NoteID)
		if err != nil || note == nil {
			return "Deleted note"
		}
		if note.Title == "" {
			return "Untitled note"
		}
		return note.Title
	}
	if link.DocumentID != nil {
		doc, err := h.store.GetDocument(*link.DocumentID)
		if err != nil || doc == nil {
			return "Deleted document"
		}
		return path.Base(doc.Path)
	}
	return ""
}

// AddActionItemLink 新增一条关联。note_id 和 document_id 恰好传一个。
func (h *Handler) AddActionItemLink(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ActionItemLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if (req.NoteID == nil) == (req.DocumentID == nil) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provide exactly one of note_id or document_id"})
		return
	}
	link := &models.ActionItemLink{
		ActionItemID: id,
		NoteID:       req.NoteID,
		DocumentID:   req.DocumentID,
	}
	if err := h.store.AddActionItemLink(link); err != nil {
		if errors.Is(err, store.ErrDuplicateLink) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, linkView{ActionItemLink: *link, DisplayName: h.linkDisplayName(*link)})
}

// DeleteActionItemLink 删除一条关联。
func (h *Handler) DeleteActionItemLink(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteActionItemLink(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
