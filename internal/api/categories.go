package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"astro/internal/models"
)

// CategoryRequest 定义了创建分类的 JSON 结构。
type CategoryRequest struct {
	Name     string  `json:"name" binding:"required"`
	Emoji    *string `json:"emoji"`
	ParentID *uint   `json:"parent_id"`
}

// CategoryUpdateRequest 定义了更新分类的 JSON 结构。
type CategoryUpdateRequest struct {
	Name  string  `json:"name" binding:"required"`
	Emoji *string `json:"emoji"`
}

// ListCategories 返回当前 Universe 下的所有分类。
func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.store.ListCategories(h.universeID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, categories)
}

// CreateCategory 新建分类。
func (h *Handler) CreateCategory(c *gin.Context) {
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	category := &models.Category{
		Name:       req.Name,
		Emoji:      req.Emoji,
		ParentID:   req.ParentID,
		UniverseID: h.universeID(c),
	}
	if err := h.store.CreateCategory(category); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, category)
}

// UpdateCategory 修改分类的名称和表情。
func (h *Handler) UpdateCategory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req CategoryUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	category, err := h.store.GetCategory(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if category == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "category not found"})
		return
	}
	category.Name = req.Name
	if req.Emoji != nil {
		category.Emoji = req.Emoji
	}
	if err := h.store.UpdateCategory(category); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, category)
}

// DeleteCategory 删除分类子树，并把引用它的实体归为未分类。
func (h *Handler) DeleteCategory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteCategory(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
