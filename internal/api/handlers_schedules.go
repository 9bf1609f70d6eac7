package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/randalmurphal/hrdesk/internal/task"
)

func (s *Server) listSchedules(c *gin.Context) {
	list := s.engine.Schedules()
	if c.Query("active") == "true" {
		active := list[:0]
		for _, sc := range list {
			if sc.IsActive {
				active = append(active, sc)
			}
		}
		list = active
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) getSchedule(c *gin.Context) {
	sc, err := s.engine.Schedule(c.Param("sid"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

func (s *Server) createSchedule(c *gin.Context) {
	id, ok := taskID(c, "id")
	if !ok {
		return
	}
	var rule task.Recurrence
	if err := c.ShouldBindJSON(&rule); err != nil {
		badRequest(c, "invalid recurrence body", err)
		return
	}
	sc, err := s.engine.CreateSchedule(c.Request.Context(), id, rule)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sc)
}

func (s *Server) cancelSchedule(c *gin.Context) {
	sc, err := s.engine.CancelSchedule(c.Request.Context(), c.Param("sid"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}
