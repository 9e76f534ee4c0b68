package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SettingRequest 定义了写入设置的 JSON 结构。
type SettingRequest struct {
	Value string `json:"value"`
}

// GetSetting 读取一条设置，不存在时返回空值。
func (h *Handler) GetSetting(c *gin.Context) {
	key := c.Param("key")
	value, err := h.store.GetSetting(key, "")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}

// PutSetting 写入一条设置。
func (h *Handler) PutSetting(c *gin.Context) {
	key := c.Param("key")
	var req SettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.PutSetting(key, req.Value); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": req.Value})
}
