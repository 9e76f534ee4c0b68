package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"astro/internal/models"
	"astro/internal/rag/loaders"
	"astro/internal/rag/pipeline"
)

// DocumentInfo 是文档列表里的一项，混合磁盘属性和数据库元数据。
type DocumentInfo struct {
	ID         uint   `json:"id"`
	Name       string `json:"name"`
	Path       string `json:"path"`
	Folder     string `json:"folder"`
	Size       int64  `json:"size"`
	Extension  string `json:"extension"`
	CategoryID *uint  `json:"category_id"`
	Pinned     bool   `json:"pinned"`
	ModifiedAt string `json:"modified_at"`
}

// DocumentCategoryRequest 定义了修改文档分类的 JSON 结构。
type DocumentCategoryRequest struct {
	CategoryID *uint `json:"category_id"`
}

// documentAbsPath 把相对路径解析到文档目录内，拒绝目录穿越。
func (h *Handler) documentAbsPath(rel string) (string, error) {
	root := h.storage.DocumentsPath()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	cleanRoot := filepath.Clean(root) + string(filepath.Separator)
	if !strings.HasPrefix(filepath.Clean(abs)+string(filepath.Separator), cleanRoot) {
		return "", fmt.Errorf("invalid document path")
	}
	return abs, nil
}

// ListDocuments 返回当前 Universe 下的文档，附带磁盘上的大小和修改时间。
func (h *Handler) ListDocuments(c *gin.Context) {
	universeID := h.universeID(c)
	categoryID, ok := h.categoryFilter(c)
	if !ok {
		return
	}
	docs, err := h.store.ListDocuments(universeID, categoryID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	infos := make([]DocumentInfo, 0, len(docs))
	for _, doc := range docs {
		info := DocumentInfo{
			ID:         doc.ID,
			Name:       filepath.Base(doc.Path),
			Path:       doc.Path,
			Folder:     filepath.ToSlash(filepath.Dir(doc.Path)),
			Extension:  strings.ToLower(filepath.Ext(doc.Path)),
			CategoryID: doc.CategoryID,
			Pinned:     doc.Pinned,
		}
		if abs, err := h.documentAbsPath(doc.Path); err == nil {
			if stat, err := os.Stat(abs); err == nil {
				info.Size = stat.Size()
				info.ModifiedAt = stat.ModTime().UTC().Format("2006-01-02T15:04:05Z")
			}
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Pinned != infos[j].Pinned {
			return infos[i].Pinned
		}
		return infos[i].Name < infos[j].Name
	})
	c.JSON(http.StatusOK, infos)
}

// UploadDocument 接收 multipart 文件，提取文本写入向量库，
// 然后把文件归档到按扩展名分桶的目录下。重名文件自动加序号。
func (h *Handler) UploadDocument(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if file.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No filename provided"})
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !loaders.Supported(ext) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf(
			"Unsupported file type: %s. Supported: %s", ext, strings.Join(loaders.SupportedExtensions, ", "))})
		return
	}

	archiveDir := filepath.Join(h.storage.DocumentsPath(), strings.TrimPrefix(ext, "."))
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// 重名时追加 _1、_2 …… 直到找到空位。
	base := filepath.Base(file.Filename)
	stem := strings.TrimSuffix(base, ext)
	dest := filepath.Join(archiveDir, base)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			break
		}
		dest = filepath.Join(archiveDir, fmt.Sprintf("%s_%d%s", stem, counter, ext))
	}

	if err := c.SaveUploadedFile(file, dest); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	rel, err := filepath.Rel(h.storage.DocumentsPath(), dest)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	doc := &models.Document{
		Path:       filepath.ToSlash(rel),
		UniverseID: h.universeID(c),
	}
	if err := h.store.UpsertDocument(doc); err != nil {
		os.Remove(dest)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	chunks, err := h.ingestDocumentFile(c.Request.Context(), pipeline.DocumentRef(doc), dest)
	if err != nil {
		os.Remove(dest)
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Ingestion failed: %v", err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"name": filepath.Base(dest), "path": doc.Path, "chunks": chunks})
}

// DownloadDocument 按相对路径返回归档文件。
func (h *Handler) DownloadDocument(c *gin.Context) {
	rel := c.Query("path")
	if rel == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}
	abs, err := h.documentAbsPath(rel)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := os.Stat(abs); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}
	c.FileAttachment(abs, filepath.Base(abs))
}

// SetDocumentCategory 修改文档的分类。
func (h *Handler) SetDocumentCategory(c *gin.Context) {
	rel := c.Query("path")
	if rel == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}
	var req DocumentCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc, err := h.store.GetDocumentByPath(rel)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if doc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}
	doc.CategoryID = req.CategoryID
	if err := h.store.UpdateDocument(doc); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, doc)
}

// PinDocument 设置文档的置顶状态。
func (h *Handler) PinDocument(c *gin.Context) {
	rel := c.Query("path")
	if rel == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}
	doc, err := h.store.GetDocumentByPath(rel)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if doc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}
	pinned := c.DefaultQuery("pinned", "true") == "true"
	if err := h.store.SetDocumentPinned(doc.ID, pinned); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "pinned": pinned})
}

// DeleteDocument 删除归档文件、元数据和向量分块。
func (h *Handler) DeleteDocument(c *gin.Context) {
	rel := c.Query("path")
	if rel == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}
	doc, err := h.store.GetDocumentByPath(rel)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if doc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}
	if err := h.store.DeleteDocument(doc.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.dropChunks(c.Request.Context(), models.EntityDocument, int64(doc.ID))
	if abs, err := h.documentAbsPath(rel); err == nil {
		if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			h.log.Warn(fmt.Sprintf("Failed to remove document file '%s': %v", rel, err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
