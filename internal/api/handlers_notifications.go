package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// listNotifications returns the inbox of the user named by the user query
// parameter, newest first. Without a user only broadcasts are listed.
func (s *Server) listNotifications(c *gin.Context) {
	user := c.Query("user")
	list := s.inbox.For(user, c.Query("unread") == "true")
	c.JSON(http.StatusOK, gin.H{
		"notifications": list,
		"unread":        s.inbox.Unread(user),
	})
}

func (s *Server) markRead(c *gin.Context) {
	if !s.inbox.MarkRead(c.Query("user"), c.Param("nid")) {
		c.AbortWithStatusJSON(http.StatusNotFound, APIError{Error: "notification not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) markAllRead(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"marked": s.inbox.MarkAllRead(c.Query("user"))})
}
