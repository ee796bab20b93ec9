package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nhle/ims-notify/internal/model"
	"github.com/nhle/ims-notify/internal/notify"
)

// createNotificationRequest is the body of POST /notifications.
type createNotificationRequest struct {
	Message    string         `json:"message" binding:"required"`
	Severity   model.Severity `json:"severity"`
	Persistent bool           `json:"persistent"`
	DurationMS int            `json:"durationMs"`
	Action     string         `json:"action"`
}

func (s *Server) handleListNotifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		list := s.center.List()
		if c.Query("unread") == "true" {
			unread := make([]model.Notification, 0, len(list))
			for _, n := range list {
				if !n.Read {
					unread = append(unread, n)
				}
			}
			list = unread
		}
		c.JSON(http.StatusOK, list)
	}
}

func (s *Server) handleUnreadCount() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"unread": s.center.UnreadCount()})
	}
}

func (s *Server) handleCreateNotification() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createNotificationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Severity != "" && !req.Severity.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown severity " + string(req.Severity)})
			return
		}

		id, err := s.center.Show(c.Request.Context(), req.Message, req.Severity, notify.Options{
			Persistent: req.Persistent,
			Duration:   time.Duration(req.DurationMS) * time.Millisecond,
			Action:     req.Action,
		})
		if err != nil {
			// The notification exists in memory; only the snapshot failed.
			log.Printf("api: persisting notification %s: %v", id, err)
		}

		n, _ := s.center.Get(id)
		c.JSON(http.StatusCreated, n)
	}
}

func (s *Server) handleMarkAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if _, ok := s.center.Get(id); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		if err := s.center.MarkAsRead(c.Request.Context(), id); err != nil {
			log.Printf("api: mark read %s: %v", id, err)
		}
		c.JSON(http.StatusOK, gin.H{"unread": s.center.UnreadCount()})
	}
}

func (s *Server) handleMarkAllAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.center.MarkAllAsRead(c.Request.Context()); err != nil {
			log.Printf("api: mark all read: %v", err)
		}
		c.JSON(http.StatusOK, gin.H{"unread": 0})
	}
}

func (s *Server) handleDeleteNotification() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if _, ok := s.center.Get(id); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		if err := s.center.Delete(c.Request.Context(), id); err != nil {
			log.Printf("api: delete %s: %v", id, err)
		}
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) handleClearNotifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.center.ClearAll(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "clearing notifications failed"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}
