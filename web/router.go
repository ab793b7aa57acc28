package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/andstatus/fedsync/db"
	"github.com/andstatus/fedsync/util"
	"github.com/andstatus/fedsync/worker"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// NewRouter wires the read API, the feeds and the command endpoint.
func NewRouter(conf *util.AppConfig, database *db.DB, w *worker.Worker) *gin.Engine {
	g := gin.Default()
	g.Use(gzip.Gzip(gzip.DefaultCompression))

	// Global rate limiter: 10 requests per second per IP, burst of 20
	globalLimiter := NewRateLimiter(rate.Limit(10), 20)
	g.Use(RateLimitMiddleware(globalLimiter))
	g.Use(ForegroundMiddleware())

	a := &api{db: database, worker: w}

	g.GET("/api/accounts", a.accounts)
	g.GET("/api/timeline", a.timeline)
	g.GET("/api/actors/:id", a.actor)
	g.GET("/api/notes/:id", a.note)
	g.GET("/api/commands/:id", a.command)

	// Stricter limit for commands, they end up on remote servers
	commandLimiter := NewRateLimiter(rate.Limit(1), 5)
	g.POST("/api/commands", RateLimitMiddleware(commandLimiter), MaxBytesMiddleware(64*1024), a.enqueue)

	// RSS Feed
	g.GET("/feed", func(c *gin.Context) {
		q, ok := timelineQuery(c)
		if !ok {
			c.Render(http.StatusBadRequest, render.String{Format: ""})
			return
		}
		c.Header("Content-Type", "application/xml; charset=utf-8")
		rss, err := GetRSS(c.Request.Context(), conf, database, q)
		if err != nil {
			c.Render(http.StatusInternalServerError, render.String{Format: ""})
		} else {
			c.Render(http.StatusOK, render.String{Format: "%s", Data: []any{rss}})
		}
	})

	g.GET("/feed/:id", func(c *gin.Context) {
		c.Header("Content-Type", "application/xml; charset=utf-8")
		noteID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.Render(http.StatusNotFound, render.String{Format: ""})
			return
		}

		rssItem, err := GetRSSItem(c.Request.Context(), conf, database, noteID)
		switch {
		case errors.Is(err, errNotFound):
			c.Render(http.StatusNotFound, render.String{Format: ""})
		case err != nil:
			c.Render(http.StatusInternalServerError, render.String{Format: ""})
		default:
			c.Render(http.StatusOK, render.String{Format: "%s", Data: []any{rssItem}})
		}
	})

	return g
}

// Router serves until ctx is cancelled.
func Router(ctx context.Context, conf *util.AppConfig, database *db.DB, w *worker.Worker) error {
	addr := fmt.Sprintf("%s:%d", conf.Conf.Host, conf.Conf.HttpPort)
	log.Infof("Starting web server on %s", addr)
	if !conf.Conf.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(conf, database, w),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("Web: shutdown: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
