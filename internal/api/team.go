package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"astro/internal/models"
)

// TeamMemberRequest 定义了创建和更新成员的 JSON 结构。
// 创建时名称可以留空，由服务端随机生成人设。
type TeamMemberRequest struct {
	Name      string `json:"name"`
	Title     string `json:"title"`
	Profile   string `json:"profile"`
	Gender    string `json:"gender"`
	AgentName string `json:"agent_name"`
}

// ListTeamMembers 返回全部虚拟团队成员。
func (h *Handler) ListTeamMembers(c *gin.Context) {
	members, err := h.store.ListTeamMembers()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, members)
}

// GetTeamMember 返回单个成员。
func (h *Handler) GetTeamMember(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	member, err := h.store.GetTeamMember(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if member == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "team member not found"})
		return
	}
	c.JSON(http.StatusOK, member)
}

// CreateTeamMember 创建成员并把画像写入向量库。
func (h *Handler) CreateTeamMember(c *gin.Context) {
	var req TeamMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	member := &models.TeamMember{
		Name:      req.Name,
		Title:     req.Title,
		Profile:   req.Profile,
		Gender:    req.Gender,
		AgentName: req.AgentName,
	}
	if err := h.store.CreateTeamMember(member); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.vectorizeMember(c.Request.Context(), member)
	c.JSON(http.StatusCreated, member)
}

// UpdateTeamMember 更新成员并重新写入画像。
func (h *Handler) UpdateTeamMember(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req TeamMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	member, err := h.store.GetTeamMember(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if member == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "team member not found"})
		return
	}
	if req.Name != "" {
		member.Name = req.Name
	}
	member.Title = req.Title
	member.Profile = req.Profile
	member.Gender = req.Gender
	member.AgentName = req.AgentName
	if err := h.store.UpdateTeamMember(member); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.vectorizeMember(c.Request.Context(), member)
	c.JSON(http.StatusOK, member)
}

// DeleteTeamMember 删除成员、其画像分块和引用它的活动任务。
func (h *Handler) DeleteTeamMember(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteTeamMember(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.dropChunks(c.Request.Context(), models.EntityMember, int64(id))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
