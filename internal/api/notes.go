package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"astro/internal/models"
)

// NoteRequest 定义了创建和更新笔记的 JSON 结构。
type NoteRequest struct {
	Title      string `json:"title" binding:"required"`
	Body       string `json:"body"`
	CategoryID *uint  `json:"category_id"`
}

// ListNotes 返回当前 Universe 下的笔记，可按分类子树过滤。
func (h *Handler) ListNotes(c *gin.Context) {
	universeID := h.universeID(c)
	categoryID, ok := h.categoryFilter(c)
	if !ok {
		return
	}
	notes, err := h.store.ListNotes(universeID, categoryID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, notes)
}

// GetNote 返回单条笔记。
func (h *Handler) GetNote(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	note, err := h.store.GetNote(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if note == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "note not found"})
		return
	}
	c.JSON(http.StatusOK, note)
}

// CreateNote 新建笔记并写入向量库。
func (h *Handler) CreateNote(c *gin.Context) {
	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	note := &models.Note{
		Title:      req.Title,
		Body:       req.Body,
		CategoryID: req.CategoryID,
		UniverseID: h.universeID(c),
	}
	if err := h.store.CreateNote(note); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.vectorizeNote(c.Request.Context(), note)
	c.JSON(http.StatusCreated, note)
}

// UpdateNote 更新笔记并重新写入向量库。
func (h *Handler) UpdateNote(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	note, err := h.store.GetNote(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if note == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "note not found"})
		return
	}
	note.Title = req.Title
	note.Body = req.Body
	note.CategoryID = req.CategoryID
	if err := h.store.UpdateNote(note); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.vectorizeNote(c.Request.Context(), note)
	c.JSON(http.StatusOK, note)
}

// DeleteNote 删除笔记、它的分块和磁盘上的图片文件。
func (h *Handler) DeleteNote(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	imageFiles, err := h.store.DeleteNote(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.dropChunks(c.Request.Context(), models.EntityNote, int64(id))
	for _, filename := range imageFiles {
		if err := os.Remove(filepath.Join(h.storage.ImagesPath(), filename)); err != nil && !os.IsNotExist(err) {
			h.log.Warn(fmt.Sprintf("Failed to remove image file '%s': %v", filename, err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// PinNote 设置笔记的置顶状态。
func (h *Handler) PinNote(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	pinned := c.DefaultQuery("pinned", "true") == "true"
	if err := h.store.SetNotePinned(id, pinned); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "pinned": pinned})
}

// ListNoteImages 返回笔记下的全部图片记录。
func (h *Handler) ListNoteImages(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	note, err := h.store.GetNote(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if note == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "note not found"})
		return
	}
	c.JSON(http.StatusOK, note.Images)
}

// UploadNoteImage 接收 multipart 图片并挂到笔记下。
// 存储名用随机 UUID，原始文件名单独保留。
func (h *Handler) UploadNoteImage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	note, err := h.store.GetNote(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if note == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "note not found"})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	filename := uuid.NewString() + ext
	if err := os.MkdirAll(h.storage.ImagesPath(), 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := c.SaveUploadedFile(file, filepath.Join(h.storage.ImagesPath(), filename)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	image := &models.NoteImage{
		NoteID:       id,
		Filename:     filename,
		OriginalName: file.Filename,
	}
	if err := h.store.AddNoteImage(image); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, image)
}

// DeleteNoteImage 删除图片记录及其文件。
func (h *Handler) DeleteNoteImage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	image, err := h.store.GetNoteImage(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if image == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	if err := h.store.DeleteNoteImage(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := os.Remove(filepath.Join(h.storage.ImagesPath(), image.Filename)); err != nil && !os.IsNotExist(err) {
		h.log.Warn(fmt.Sprintf("Failed to remove image file '%s': %v", image.Filename, err))
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ServeNoteImage 按存储名返回图片文件。
func (h *Handler) ServeNoteImage(c *gin.Context) {
	filename := filepath.Base(c.Param("filename"))
	path := filepath.Join(h.storage.ImagesPath(), filename)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	c.File(path)
}

// NoteActionItems 返回关联到该笔记的待办事项。
func (h *Handler) NoteActionItems(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	items, err := h.store.ActionItemsLinkedToNote(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, items)
}
