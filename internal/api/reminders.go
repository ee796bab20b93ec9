package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nhle/ims-notify/internal/model"
	"github.com/nhle/ims-notify/internal/reminder"
)

// reminderRequest is the body of POST /reminders.
type reminderRequest struct {
	Type                 model.ReminderType      `json:"type" binding:"required"`
	Title                string                  `json:"title" binding:"required"`
	Message              string                  `json:"message"`
	TargetDate           time.Time               `json:"targetDate" binding:"required"`
	Recipients           []string                `json:"recipients"`
	Channels             []model.Channel         `json:"channels"`
	Priority             model.Priority          `json:"priority"`
	Recurring            bool                    `json:"recurring"`
	RecurringPattern     *model.RecurringPattern `json:"recurringPattern"`
	AdvanceNotifications []reminder.Advance      `json:"advanceNotifications"`
}

// patchRequest is the body of PATCH /reminders/:id. Absent fields are left
// unchanged.
type patchRequest struct {
	Title                *string                 `json:"title"`
	Message              *string                 `json:"message"`
	TargetDate           *time.Time              `json:"targetDate"`
	Recipients           []string                `json:"recipients"`
	Channels             []model.Channel         `json:"channels"`
	Priority             *model.Priority         `json:"priority"`
	Recurring            *bool                   `json:"recurring"`
	RecurringPattern     *model.RecurringPattern `json:"recurringPattern"`
	AdvanceNotifications []reminder.Advance      `json:"advanceNotifications"`
}

// checkResponse summarizes an on-demand due check.
type checkResponse struct {
	Delivered  int      `json:"delivered"`
	Failed     int      `json:"failed"`
	Successors []string `json:"successors"`
}

func (s *Server) handleListReminders() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := model.ReminderStatus(c.Query("status"))
		all := s.engine.List()
		out := make([]*model.Reminder, 0, len(all))
		for _, r := range all {
			if status == "" || r.Status == status {
				out = append(out, r)
			}
		}
		c.JSON(http.StatusOK, out)
	}
}

func (s *Server) handleGetReminder() gin.HandlerFunc {
	return func(c *gin.Context) {
		r, ok := s.engine.Get(c.Param("id"))
		if !ok {
			reminderError(c, reminder.ErrNotFound)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

func (s *Server) handleCreateReminder() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reminderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		r, err := s.engine.Schedule(c.Request.Context(), reminder.Spec{
			Type:       req.Type,
			Title:      req.Title,
			Message:    req.Message,
			TargetDate: req.TargetDate,
			Recipients: req.Recipients,
			Channels:   req.Channels,
			Priority:   req.Priority,
			Recurring:  req.Recurring,
			Pattern:    req.RecurringPattern,
			Advance:    req.AdvanceNotifications,
		})
		if !committed(c, err) {
			reminderError(c, err)
			return
		}
		c.JSON(http.StatusCreated, r)
	}
}

// handleCreateTyped schedules through the per-kind constructors so callers
// get the standard channels, priority and advance notices.
func (s *Server) handleCreateTyped() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var (
			r   *model.Reminder
			err error
		)

		switch c.Param("kind") {
		case "interview":
			var in reminder.Interview
			if err := c.ShouldBindJSON(&in); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			r, err = s.engine.ScheduleInterview(ctx, in)
		case "task-deadline":
			var in reminder.TaskDeadline
			if err := c.ShouldBindJSON(&in); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			r, err = s.engine.ScheduleTaskDeadline(ctx, in)
		case "evaluation":
			var in reminder.Evaluation
			if err := c.ShouldBindJSON(&in); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			r, err = s.engine.ScheduleEvaluation(ctx, in)
		case "training":
			var in reminder.Training
			if err := c.ShouldBindJSON(&in); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			r, err = s.engine.ScheduleTraining(ctx, in)
		default:
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown reminder kind " + c.Param("kind")})
			return
		}

		if !committed(c, err) {
			reminderError(c, err)
			return
		}
		c.JSON(http.StatusCreated, r)
	}
}

func (s *Server) handleUpdateReminder() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req patchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		r, err := s.engine.Update(c.Request.Context(), c.Param("id"), reminder.Patch{
			Title:      req.Title,
			Message:    req.Message,
			TargetDate: req.TargetDate,
			Recipients: req.Recipients,
			Channels:   req.Channels,
			Priority:   req.Priority,
			Recurring:  req.Recurring,
			Pattern:    req.RecurringPattern,
			Advance:    req.AdvanceNotifications,
		})
		if !committed(c, err) {
			reminderError(c, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

func (s *Server) handleCancelReminder() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := s.engine.Cancel(c.Request.Context(), id); !committed(c, err) {
			reminderError(c, err)
			return
		}
		r, _ := s.engine.Get(id)
		c.JSON(http.StatusOK, r)
	}
}

func (s *Server) handleCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := s.engine.Check(c.Request.Context())
		if err != nil {
			// Deliveries happened; only the snapshot failed.
			log.Printf("api: check: %v", err)
		}
		successors := result.Successors
		if successors == nil {
			successors = []string{}
		}
		c.JSON(http.StatusOK, checkResponse{
			Delivered:  len(result.Notices),
			Failed:     result.Failed,
			Successors: successors,
		})
	}
}

func (s *Server) handleListDeliveries() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if _, ok := s.engine.Get(id); !ok {
			reminderError(c, reminder.ErrNotFound)
			return
		}
		if s.deliveries == nil {
			c.JSON(http.StatusOK, []any{})
			return
		}

		limit := 50
		if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
			limit = v
		}
		attempts, err := s.deliveries.ListDeliveries(c.Request.Context(), id, limit)
		if err != nil {
			log.Printf("api: listing deliveries for %s: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "listing deliveries failed"})
			return
		}
		c.JSON(http.StatusOK, attempts)
	}
}
