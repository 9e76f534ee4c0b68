package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"astro/pkg/ratelimiter"
)

// rateLimit 把超出限额的请求以 429 拒绝。
func rateLimit(limiter ratelimiter.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

// SetupRouter 配置和返回一个 Gin 引擎实例。
func SetupRouter(h *Handler) *gin.Engine {
	// 使用默认中间件 (logger, recovery) 创建一个 Gin 引擎。
	r := gin.Default()

	api := r.Group("/api")
	{
		api.POST("/query", h.Query)
		api.GET("/stats", h.Stats)
		api.POST("/reindex", h.Reindex)
		api.GET("/pinned", h.ListPinned)

		api.GET("/backup", h.Backup)
		api.POST("/restore", h.Restore)

		notes := api.Group("/notes")
		{
			notes.GET("", h.ListNotes)
			notes.POST("", h.CreateNote)
			notes.GET("/:id", h.GetNote)
			notes.PUT("/:id", h.UpdateNote)
			notes.DELETE("/:id", h.DeleteNote)
			notes.PUT("/:id/pin", h.PinNote)
			notes.GET("/:id/images", h.ListNoteImages)
			notes.POST("/:id/images", h.UploadNoteImage)
			notes.GET("/:id/action-items", h.NoteActionItems)
		}
		api.DELETE("/note-images/:id", h.DeleteNoteImage)
		api.GET("/note-images/file/:filename", h.ServeNoteImage)

		categories := api.Group("/categories")
		{
			categories.GET("", h.ListCategories)
			categories.POST("", h.CreateCategory)
			categories.PUT("/:id", h.UpdateCategory)
			categories.DELETE("/:id", h.DeleteCategory)
		}

		links := api.Group("/links")
		{
			links.GET("", h.ListLinks)
			links.POST("", h.CreateLink)
			links.GET("/:id", h.GetLink)
			links.PUT("/:id", h.UpdateLink)
			links.DELETE("/:id", h.DeleteLink)
			links.PUT("/:id/pin", h.PinLink)
		}

		documents := api.Group("/documents")
		{
			documents.GET("", h.ListDocuments)
			documents.POST("/upload", h.UploadDocument)
			documents.GET("/download", h.DownloadDocument)
			documents.PUT("/category", h.SetDocumentCategory)
			documents.PUT("/pin", h.PinDocument)
			documents.DELETE("", h.DeleteDocument)
		}

		items := api.Group("/action-items")
		{
			items.GET("", h.ListActionItems)
			items.POST("", h.CreateActionItem)
			items.PUT("/:id", h.UpdateActionItem)
			items.DELETE("/:id", h.DeleteActionItem)
			items.GET("/:id/links", h.ListActionItemLinks)
			items.POST("/:id/links", h.AddActionItemLink)
		}
		api.DELETE("/action-item-links/:id", h.DeleteActionItemLink)

		universes := api.Group("/universes")
		{
			universes.GET("", h.ListUniverses)
			universes.POST("", h.CreateUniverse)
			universes.PUT("/:id", h.RenameUniverse)
			universes.DELETE("/:id", h.DeleteUniverse)
		}

		settings := api.Group("/settings")
		{
			settings.GET("/:key", h.GetSetting)
			settings.PUT("/:key", h.PutSetting)
		}

		team := api.Group("/team-members")
		{
			team.GET("", h.ListTeamMembers)
			team.GET("/:id", h.GetTeamMember)
			team.POST("", h.CreateTeamMember)
			team.PUT("/:id", h.UpdateTeamMember)
			team.DELETE("/:id", h.DeleteTeamMember)
		}

		activities := api.Group("/activities")
		{
			activities.GET("", h.ListActivities)
			activities.GET("/:id", h.GetActivity)
			activities.POST("", h.CreateActivity)
			activities.PUT("/:id", h.UpdateActivity)
			activities.DELETE("/:id", h.DeleteActivity)
			activities.POST("/:id/run", h.RunActivity)
			activities.GET("/:id/runs", h.ListActivityRuns)
			activities.DELETE("/:id/runs", h.ClearActivityRuns)
		}
		api.GET("/activity-runs/:id", h.GetActivityRun)
		api.DELETE("/activity-runs/:id", h.DeleteActivityRun)

		feeds := api.Group("/feeds")
		{
			feeds.GET("", h.ListFeeds)
			feeds.POST("", h.CreateFeed)
			feeds.GET("/:id", h.GetFeed)
			feeds.PUT("/:id", h.UpdateFeed)
			feeds.DELETE("/:id", h.DeleteFeed)
			feeds.PUT("/:id/pin", h.PinFeed)
			feeds.GET("/:id/artifacts", h.ListFeedArtifacts)
			// ingest 是面向外部系统的入口，限速防止推送方失控刷库。
			feeds.POST("/:id/ingest", rateLimit(ratelimiter.NewTokenBucket(5, 20)), h.IngestFeedArtifact)
		}
		api.DELETE("/feed-artifacts/:id", h.DeleteFeedArtifact)
	}

	return r
}
