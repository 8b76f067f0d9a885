// Package http serves the operator API: health, recent users and a live event feed.
package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"traffic-light-bot/internal/domain"
	"traffic-light-bot/internal/logging"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 100
)

// UserLister is implemented by app.QuizService.
type UserLister interface {
	RecentUsers(ctx context.Context, limit int) ([]domain.UserRecord, error)
}

// EventSource is implemented by events.Hub.
type EventSource interface {
	Subscribe() (<-chan domain.Event, func())
}

type Options struct {
	AdminID        int64
	JWTSecret      string
	AllowedOrigins []string
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) errorResponse {
	return errorResponse{Error: msg}
}

// NewRouter builds the gin engine with recovery, request logging and optional CORS.
func NewRouter(users UserLister, events EventSource, opts Options, log *logging.Logger) *gin.Engine {
	if log == nil {
		log = logging.NewNop()
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))
	if len(opts.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     opts.AllowedOrigins,
			AllowMethods:     []string{"GET", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	protected := router.Group("/")
	protected.Use(requireAdmin(opts.JWTSecret, opts.AdminID))
	protected.GET("/api/users/recent", recentUsers(users, log))
	protected.GET("/ws/events", NewWSHandler(events, log).ServeWS)

	return router
}

// NewServer wraps the handler with the listener timeouts.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
}

type recentUserView struct {
	domain.UserRecord
	Label string `json:"label"`
}

func recentUsers(users UserLister, log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := defaultRecentLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, errorBody("limit must be a positive integer"))
				return
			}
			limit = min(n, maxRecentLimit)
		}
		list, err := users.RecentUsers(c.Request.Context(), limit)
		if err != nil {
			log.Error("list recent users failed", "error", err)
			c.JSON(http.StatusInternalServerError, errorBody("internal error"))
			return
		}
		out := make([]recentUserView, 0, len(list))
		for _, u := range list {
			out = append(out, recentUserView{UserRecord: u, Label: u.Profile().PlainLabel()})
		}
		c.JSON(http.StatusOK, gin.H{"users": out})
	}
}

func requestLogger(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
