package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"astro/internal/models"
	"astro/internal/rag/loaders"
	"astro/internal/rag/pipeline"
)

// FeedRequest 定义了创建和更新信息流的 JSON 结构。
type FeedRequest struct {
	Title      string `json:"title" binding:"required"`
	CategoryID *uint  `json:"category_id"`
}

// ListFeeds 返回当前 Universe 下的信息流。
func (h *Handler) ListFeeds(c *gin.Context) {
	feeds, err := h.store.ListFeeds(h.universeID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, feeds)
}

// GetFeed 返回单个信息流。
func (h *Handler) GetFeed(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	feed, err := h.store.GetFeed(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if feed == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "feed not found"})
		return
	}
	c.JSON(http.StatusOK, feed)
}

// CreateFeed 创建信息流并生成它的推送密钥。
func (h *Handler) CreateFeed(c *gin.Context) {
	var req FeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	feed := &models.Feed{
		Title:      req.Title,
		APIKey:     uuid.NewString(),
		CategoryID: req.CategoryID,
		UniverseID: h.universeID(c),
	}
	if err := h.store.CreateFeed(feed); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, feed)
}

// UpdateFeed 更新信息流的标题和分类。
func (h *Handler) UpdateFeed(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req FeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	feed, err := h.store.GetFeed(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if feed == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "feed not found"})
		return
	}
	feed.Title = req.Title
	feed.CategoryID = req.CategoryID
	if err := h.store.UpdateFeed(feed); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, feed)
}

// DeleteFeed 删除信息流、其产物记录、分块和归档文件。
func (h *Handler) DeleteFeed(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	artifacts, err := h.store.ListFeedArtifacts(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	filePaths, err := h.store.DeleteFeed(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	for _, artifact := range artifacts {
		h.dropChunks(c.Request.Context(), models.EntityFeed, int64(artifact.ID))
	}
	for _, rel := range filePaths {
		if abs, err := h.documentAbsPath(rel); err == nil {
			if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
				h.log.Warn(fmt.Sprintf("Failed to remove feed file '%s': %v", rel, err))
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// PinFeed 设置信息流的置顶状态。
func (h *Handler) PinFeed(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	pinned := c.DefaultQuery("pinned", "true") == "true"
	if err := h.store.SetFeedPinned(id, pinned); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "pinned": pinned})
}

// ListFeedArtifacts 返回信息流的产物列表。
func (h *Handler) ListFeedArtifacts(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	artifacts, err := h.store.ListFeedArtifacts(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, artifacts)
}

// IngestFeedArtifact 是外部系统的推送入口。
// 请求须携带信息流自己的 X-Feed-Key，multipart 表单带 title 和
// markup 或 file 之一。Markdown 正文直接入库，文件归档后提取文本。
func (h *Handler) IngestFeedArtifact(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	feed, err := h.store.GetFeed(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if feed == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "feed not found"})
		return
	}
	if c.GetHeader("X-Feed-Key") != feed.APIKey {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid feed key"})
		return
	}

	title := c.PostForm("title")
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}
	markup := c.PostForm("markup")
	file, fileErr := c.FormFile("file")
	if markup == "" && fileErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provide either markup or file"})
		return
	}

	if markup != "" {
		artifact := &models.FeedArtifact{
			FeedID:      feed.ID,
			Title:       title,
			ContentType: models.ArtifactMarkup,
			Markup:      markup,
		}
		if err := h.store.CreateFeedArtifact(artifact); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		ref := pipeline.FeedArtifactRef(artifact, feed.UniverseID)
		if _, err := h.indexer.IngestEntity(c.Request.Context(), ref, title+"\n\n"+markup); err != nil {
			h.log.Warn(fmt.Sprintf("Failed to vectorize feed artifact %d: %v", artifact.ID, err))
		}
		c.JSON(http.StatusCreated, gin.H{"ok": true, "artifact_id": artifact.ID, "content_type": artifact.ContentType})
		return
	}

	// 文件归档到信息流自己的目录下，存储名加 UUID 前缀防碰撞。
	feedDir := filepath.Join(h.storage.DocumentsPath(), "feeds")
	if err := os.MkdirAll(feedDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	storedName := uuid.NewString()[:8] + "_" + filepath.Base(file.Filename)
	dest := filepath.Join(feedDir, storedName)
	if err := c.SaveUploadedFile(file, dest); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	detected, err := mimetype.DetectFile(dest)
	if err != nil {
		h.log.Warn(fmt.Sprintf("Failed to sniff feed upload '%s': %v", storedName, err))
	}

	artifact := &models.FeedArtifact{
		FeedID:           feed.ID,
		Title:            title,
		ContentType:      models.ArtifactFile,
		FilePath:         "feeds/" + storedName,
		OriginalFilename: file.Filename,
	}
	if err := h.store.CreateFeedArtifact(artifact); err != nil {
		os.Remove(dest)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// 能提取文本的类型才进向量库，其余只归档。
	if loaders.Supported(strings.ToLower(filepath.Ext(file.Filename))) {
		ref := pipeline.FeedArtifactRef(artifact, feed.UniverseID)
		if _, err := h.ingestDocumentFile(c.Request.Context(), ref, dest); err != nil {
			h.log.Warn(fmt.Sprintf("Failed to vectorize feed artifact %d: %v", artifact.ID, err))
		}
	} else if detected != nil {
		h.log.Info(fmt.Sprintf("Archived feed artifact %d without text extraction (%s)", artifact.ID, detected.String()))
	}

	c.JSON(http.StatusCreated, gin.H{"ok": true, "artifact_id": artifact.ID, "content_type": artifact.ContentType})
}

// DeleteFeedArtifact 删除一条产物及其分块和归档文件。
func (h *Handler) DeleteFeedArtifact(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	artifact, err := h.store.GetFeedArtifact(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if artifact == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "artifact not found"})
		return
	}
	if err := h.store.DeleteFeedArtifact(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.dropChunks(c.Request.Context(), models.EntityFeed, int64(id))
	if artifact.FilePath != "" {
		if abs, err := h.documentAbsPath(artifact.FilePath); err == nil {
			if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
				h.log.Warn(fmt.Sprintf("Failed to remove feed file '%s': %v", artifact.FilePath, err))
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
