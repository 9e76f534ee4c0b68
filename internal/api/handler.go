package api

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"astro/internal/activity"
	"astro/internal/backup"
	"astro/internal/config"
	"astro/internal/models"
	"astro/internal/rag/interfaces"
	"astro/internal/rag/loaders"
	"astro/internal/rag/pipeline"
	"astro/internal/rag/schema"
	"astro/internal/store"
	"astro/pkg/logger"
)

// Handler 封装了所有 API endpoint 的处理函数及其依赖。
type Handler struct {
	store    *store.Store
	indexer  *pipeline.Indexer
	answerer *pipeline.Answerer
	runner   *activity.Runner
	vectors  interfaces.VectorStore
	backup   *backup.Manager
	storage  config.StorageConfig
	log      *logger.Logger
}

// NewHandler 创建一个新的 Handler 实例。
func NewHandler(
	st *store.Store,
	indexer *pipeline.Indexer,
	answerer *pipeline.Answerer,
	runner *activity.Runner,
	vectors interfaces.VectorStore,
	backupManager *backup.Manager,
	storage config.StorageConfig,
) *Handler {
	return &Handler{
		store:    st,
		indexer:  indexer,
		answerer: answerer,
		runner:   runner,
		vectors:  vectors,
		backup:   backupManager,
		storage:  storage,
		log:      logger.New("api"),
	}
}

// pathID 解析路径参数中的数字 ID。
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(400, gin.H{"error": fmt.Sprintf("invalid %s", name)})
		return 0, false
	}
	return uint(id), true
}

// universeID 确定一次请求所处的 Universe。
// 优先取 universe_id 查询参数，其次取 selected_universe 设置，最后回退到第一个 Universe。
func (h *Handler) universeID(c *gin.Context) uint {
	if raw := c.Query("universe_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			return uint(id)
		}
	}
	if raw, err := h.store.GetSetting("selected_universe", ""); err == nil && raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			return uint(id)
		}
	}
	universes, err := h.store.ListUniverses()
	if err == nil && len(universes) > 0 {
		return universes[0].ID
	}
	return 1
}

// categoryFilter 解析可选的 category_id 查询参数。
func (h *Handler) categoryFilter(c *gin.Context) (*uint, bool) {
	raw := c.Query("category_id")
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		c.JSON(400, gin.H{"error": "invalid category_id"})
		return nil, false
	}
	catID := uint(id)
	return &catID, true
}

// vectorizeNote 把笔记写入向量库。摄取失败只记日志，不影响请求结果。
func (h *Handler) vectorizeNote(ctx context.Context, note *models.Note) {
	if _, err := h.indexer.IngestEntity(ctx, pipeline.NoteRef(note), pipeline.NoteText(note)); err != nil {
		h.log.Warn(fmt.Sprintf("Failed to vectorize note %d: %v", note.ID, err))
	}
}

// vectorizeActionItem 把待办事项连同分类名写入向量库。
func (h *Handler) vectorizeActionItem(ctx context.Context, item *models.ActionItem) {
	categoryName := ""
	if item.CategoryID != nil {
		if cat, err := h.store.GetCategory(*item.CategoryID); err == nil && cat != nil {
			categoryName = cat.Name
		}
	}
	if _, err := h.indexer.IngestEntity(ctx, pipeline.ActionItemRef(item), pipeline.ActionItemText(item, categoryName)); err != nil {
		h.log.Warn(fmt.Sprintf("Failed to vectorize action item %d: %v", item.ID, err))
	}
}

// vectorizeMember 把成员画像写入向量库，画像为空时清除其分块。
func (h *Handler) vectorizeMember(ctx context.Context, member *models.TeamMember) {
	text := pipeline.MemberText(member)
	if text == "" {
		h.dropChunks(ctx, models.EntityMember, int64(member.ID))
		return
	}
	if _, err := h.indexer.IngestEntity(ctx, pipeline.MemberRef(member), text); err != nil {
		h.log.Warn(fmt.Sprintf("Failed to vectorize team member %d: %v", member.ID, err))
	}
}

// dropChunks 删除某个实体的全部分块。失败只记日志。
func (h *Handler) dropChunks(ctx context.Context, entityType string, entityID int64) {
	if err := h.indexer.DeleteEntity(ctx, entityType, entityID); err != nil {
		h.log.Warn(fmt.Sprintf("Failed to delete chunks of %s %d: %v", entityType, entityID, err))
	}
}

// ingestDocumentFile 提取文件文本并写入向量库，返回分块数。
func (h *Handler) ingestDocumentFile(ctx context.Context, ref schema.EntityRef, absPath string) (int, error) {
	loader, err := loaders.ForPath(absPath)
	if err != nil {
		return 0, err
	}
	docs, err := loader.Load(ctx, absPath)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, fmt.Errorf("could not extract content from '%s'", filepath.Base(absPath))
	}
	return h.indexer.IngestDocs(ctx, ref, docs)
}
