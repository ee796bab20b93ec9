// Package api exposes the notification center and the reminder engine over
// HTTP for other parts of the dashboard.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nhle/ims-notify/internal/notify"
	"github.com/nhle/ims-notify/internal/reminder"
	"github.com/nhle/ims-notify/internal/store"
)

// shutdownTimeout bounds graceful shutdown of in-flight requests.
const shutdownTimeout = 5 * time.Second

// Server is the companion HTTP API.
type Server struct {
	router     *gin.Engine
	addr       string
	center     *notify.Center
	engine     *reminder.Engine
	deliveries store.DeliveryLog
}

// NewServer builds the router. An empty secret is rejected since every
// /api route requires a bearer token.
func NewServer(addr, secret string, center *notify.Center, engine *reminder.Engine, deliveries store.DeliveryLog) (*Server, error) {
	if secret == "" {
		return nil, errors.New("api: jwt secret is required")
	}

	router := gin.New()
	router.Use(Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:     router,
		addr:       addr,
		center:     center,
		engine:     engine,
		deliveries: deliveries,
	}
	s.setupRoutes(secret)
	return s, nil
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("api: listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api: serving: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api: shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) setupRoutes(secret string) {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "imsnotify"})
	})

	api := s.router.Group("/api/v1")
	api.Use(JWTAuth(secret))
	{
		notifications := api.Group("/notifications")
		{
			notifications.GET("", s.handleListNotifications())
			notifications.GET("/unread-count", s.handleUnreadCount())
			notifications.POST("", s.handleCreateNotification())
			notifications.PUT("/read-all", s.handleMarkAllAsRead())
			notifications.PUT("/:id/read", s.handleMarkAsRead())
			notifications.DELETE("/:id", s.handleDeleteNotification())
			notifications.DELETE("", s.handleClearNotifications())
		}

		reminders := api.Group("/reminders")
		{
			reminders.GET("", s.handleListReminders())
			reminders.POST("", s.handleCreateReminder())
			reminders.POST("/check", s.handleCheck())
			reminders.POST("/kind/:kind", s.handleCreateTyped())
			reminders.GET("/:id", s.handleGetReminder())
			reminders.GET("/:id/deliveries", s.handleListDeliveries())
			reminders.PATCH("/:id", s.handleUpdateReminder())
			reminders.POST("/:id/cancel", s.handleCancelReminder())
		}
	}
}

// reminderError maps engine errors to HTTP responses.
// committed reports whether the engine applied the change. A failed
// snapshot write leaves the change in memory, so it is logged and treated as
// success to keep clients from retrying into duplicates.
func committed(c *gin.Context, err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, reminder.ErrPersist) {
		log.Printf("api: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		return true
	}
	return false
}

func reminderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, reminder.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, reminder.ErrNotScheduled):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, reminder.ErrInvalidSpec):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("api: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
