package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"astro/internal/models"
	"astro/internal/store"
)

// UniverseRequest 定义了创建和重命名 Universe 的 JSON 结构。
type UniverseRequest struct {
	Name string `json:"name" binding:"required"`
}

// ListUniverses 返回全部 Universe。
func (h *Handler) ListUniverses(c *gin.Context) {
	universes, err := h.store.ListUniverses()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, universes)
}

// CreateUniverse 创建一个新的 Universe。
func (h *Handler) CreateUniverse(c *gin.Context) {
	var req UniverseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	universe, err := h.store.CreateUniverse(req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, universe)
}

// RenameUniverse 修改 Universe 的名称。
func (h *Handler) RenameUniverse(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req UniverseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	universe, err := h.store.RenameUniverse(id, req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, universe)
}

// DeleteUniverse 删除一个 Universe 及其全部内容。
// 级联删除的实体在向量库里的分块也要一并清掉，否则无范围检索还能搜到。
// 最后一个 Universe 不允许删除。
func (h *Handler) DeleteUniverse(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	purge, err := h.store.DeleteUniverse(id)
	if err != nil {
		if errors.Is(err, store.ErrLastUniverse) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	for _, noteID := range purge.NoteIDs {
		h.dropChunks(ctx, models.EntityNote, int64(noteID))
	}
	for _, itemID := range purge.ActionItemIDs {
		h.dropChunks(ctx, models.EntityActionItem, int64(itemID))
	}
	for _, docID := range purge.DocumentIDs {
		h.dropChunks(ctx, models.EntityDocument, int64(docID))
	}
	for _, artifactID := range purge.ArtifactIDs {
		h.dropChunks(ctx, models.EntityFeed, int64(artifactID))
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
