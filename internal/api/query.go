package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"astro/internal/rag/loaders"
	"astro/internal/rag/pipeline"
	"astro/internal/rag/schema"
)

// QueryRequest 定义了对话请求的 JSON 结构。
type QueryRequest struct {
	Question   string               `json:"question" binding:"required"`
	Model      string               `json:"model"`
	UseContext *bool                `json:"use_context"`
	History    []schema.ChatMessage `json:"history"`
	UniverseID uint                 `json:"universe_id"`
	Timezone   string               `json:"timezone"`
}

// Query 处理一轮对话。use_context 开启时要求向量库非空。
func (h *Handler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	useContext := true
	if req.UseContext != nil {
		useContext = *req.UseContext
	}
	universeID := req.UniverseID
	if universeID == 0 {
		universeID = h.universeID(c)
	}

	if useContext {
		count, err := h.vectors.Count(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if count == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Vector store is empty. Ingest documents first or disable context."})
			return
		}
	}

	model := req.Model
	if model == "" {
		model, _ = h.store.GetSetting("selected_model", "")
	}

	result, err := h.answerer.Answer(c.Request.Context(), req.Question, req.History, useContext, universeID, model, req.Timezone)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": result.Answer, "model": result.Model})
}

// Stats 返回向量库中的分块总数。
func (h *Handler) Stats(c *gin.Context) {
	count, err := h.vectors.Count(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chunks": count})
}

// Reindex 清空向量库并从数据库和文档目录重建全部嵌入。
// 恢复备份之后调用它重新生成向量。
func (h *Handler) Reindex(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.vectors.Clear(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	counts := gin.H{"notes": 0, "action_items": 0, "team_members": 0, "document_chunks": 0}
	noteCount, itemCount, memberCount, chunkCount := 0, 0, 0, 0

	universes, err := h.store.ListUniverses()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	for _, universe := range universes {
		notes, err := h.store.ListNotes(universe.ID, nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		for i := range notes {
			h.vectorizeNote(ctx, &notes[i])
			noteCount++
		}

		items, err := h.store.ListActionItems(universe.ID, true)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		for i := range items {
			h.vectorizeActionItem(ctx, &items[i])
			itemCount++
		}
	}

	members, err := h.store.ListTeamMembers()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	for i := range members {
		if pipeline.MemberText(&members[i]) == "" {
			continue
		}
		h.vectorizeMember(ctx, &members[i])
		memberCount++
	}

	chunkCount = h.reindexDocuments(c)

	counts["notes"] = noteCount
	counts["action_items"] = itemCount
	counts["team_members"] = memberCount
	counts["document_chunks"] = chunkCount
	c.JSON(http.StatusOK, gin.H{"ok": true, "reindexed": counts})
}

// reindexDocuments 重新摄取文档目录下所有受支持的文件。
func (h *Handler) reindexDocuments(c *gin.Context) int {
	ctx := c.Request.Context()
	root := h.storage.DocumentsPath()
	total := 0
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !loaders.Supported(filepath.Ext(path)) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		doc, err := h.store.GetDocumentByPath(filepath.ToSlash(rel))
		if err != nil || doc == nil {
			return nil
		}
		n, err := h.ingestDocumentFile(ctx, pipeline.DocumentRef(doc), path)
		if err != nil {
			h.log.Warn(fmt.Sprintf("Reindex skipped '%s': %v", rel, err))
			return nil
		}
		total += n
		return nil
	})
	return total
}

// ListPinned 汇总当前 Universe 下所有置顶的内容。
func (h *Handler) ListPinned(c *gin.Context) {
	universeID := h.universeID(c)

	notes, err := h.store.PinnedNotes(universeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	links, err := h.store.PinnedLinks(universeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	documents, err := h.store.PinnedDocuments(universeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	feeds, err := h.store.PinnedFeeds(universeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notes": notes, "links": links, "documents": documents, "feeds": feeds})
}
