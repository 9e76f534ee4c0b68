package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Backup 把完整备份以 ZIP 附件形式流式返回。
func (h *Handler) Backup(c *gin.Context) {
	filename := fmt.Sprintf("astro-backup-%s.zip", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	if err := h.backup.Create(c.Request.Context(), c.Writer); err != nil {
		h.log.Error("Backup failed: " + err.Error())
	}
}

// Restore 从上传的 ZIP 恢复全部状态。
// 归档校验失败时现有数据保持不变。
func (h *Handler) Restore(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !strings.HasSuffix(strings.ToLower(file.Filename), ".zip") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please upload a .zip file"})
		return
	}

	tmpPath := filepath.Join(os.TempDir(), "astro-restore-"+uuid.NewString()+".zip")
	if err := c.SaveUploadedFile(file, tmpPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer os.Remove(tmpPath)

	summary, err := h.backup.Restore(c.Request.Context(), tmpPath)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid backup file: %v", err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"restored": summary,
		"message":  "Restore complete (including vector store).",
	})
}
