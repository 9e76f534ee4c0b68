package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"astro/internal/models"
)

// LinkRequest 定义了创建和更新书签的 JSON 结构。
type LinkRequest struct {
	Title       string `json:"title"`
	URL         string `json:"url" binding:"required"`
	Description string `json:"description"`
	CategoryID  *uint  `json:"category_id"`
}

// ListLinks 返回当前 Universe 下的书签，可按分类子树过滤。
func (h *Handler) ListLinks(c *gin.Context) {
	universeID := h.universeID(c)
	categoryID, ok := h.categoryFilter(c)
	if !ok {
		return
	}
	links, err := h.store.ListLinks(universeID, categoryID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, links)
}

// GetLink 返回单条书签。
func (h *Handler) GetLink(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	link, err := h.store.GetLink(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if link == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
		return
	}
	c.JSON(http.StatusOK, link)
}

// CreateLink 新建书签。
func (h *Handler) CreateLink(c *gin.Context) {
	var req LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	link := &models.Link{
		Title:       req.Title,
		URL:         req.URL,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		UniverseID:  h.universeID(c),
	}
	if err := h.store.CreateLink(link); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, link)
}

// UpdateLink 更新书签。
func (h *Handler) UpdateLink(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	link, err := h.store.GetLink(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if link == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
		return
	}
	link.Title = req.Title
	link.URL = req.URL
	link.Description = req.Description
	link.CategoryID = req.CategoryID
	if err := h.store.UpdateLink(link); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, link)
}

// DeleteLink 删除书签。
func (h *Handler) DeleteLink(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteLink(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// PinLink 设置书签的置顶状态。
func (h *Handler) PinLink(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	pinned := c.DefaultQuery("pinned", "true") == "true"
	if err := h.store.SetLinkPinned(id, pinned); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "pinned": pinned})
}
