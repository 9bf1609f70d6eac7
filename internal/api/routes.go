package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) routes(rateLimit float64, rateBurst int) *gin.Engine {
	r := gin.New()
	r.Use(Recovery(s.logger), RequestLogger(s.logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": s.engine.Now()})
	})
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	r.GET("/ws", gin.WrapH(s.ws))

	api := r.Group("/api", RateLimiter(rateLimit, rateBurst))

	tasks := api.Group("/tasks")
	tasks.GET("", s.listTasks)
	tasks.POST("", s.createTask)
	tasks.GET("/:id", s.getTask)
	tasks.PATCH("/:id", s.updateTask)
	tasks.DELETE("/:id", s.deleteTask)
	tasks.POST("/:id/assign", s.assignTask)
	tasks.POST("/:id/unassign", s.unassignTask)
	tasks.PUT("/:id/progress", s.updateProgress)
	tasks.GET("/:id/can-start", s.canStart)
	tasks.GET("/:id/chain", s.dependencyChain)
	tasks.POST("/:id/dependencies", s.addDependency)
	tasks.DELETE("/:id/dependencies/:dep", s.removeDependency)
	tasks.POST("/:id/schedule", s.createSchedule)

	api.GET("/users/:user/tasks", s.tasksByUser)
	api.GET("/overdue", s.overdue)
	api.GET("/upcoming", s.upcoming)
	api.GET("/stats", s.stats)
	api.POST("/tick", s.tick)

	api.GET("/schedules", s.listSchedules)
	api.GET("/schedules/:sid", s.getSchedule)
	api.DELETE("/schedules/:sid", s.cancelSchedule)

	api.GET("/export", s.exportCSV)
	api.POST("/import", s.importCSV)

	api.GET("/notifications", s.listNotifications)
	api.POST("/notifications/read-all", s.markAllRead)
	api.POST("/notifications/:nid/read", s.markRead)

	return r
}
