// Package httpapi is the ops surface of the analysis service.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Andrandra1na/AMER-SMA/aggregate"
	"github.com/Andrandra1na/AMER-SMA/jobs"
	"github.com/Andrandra1na/AMER-SMA/store"
)

// Store is what the handlers read.
type Store interface {
	Ping(ctx context.Context) error
	Session(ctx context.Context, id int64) (*store.Session, error)
	Answers(ctx context.Context, sessionID int64) ([]store.AnswerAnalysis, error)
	Metrics(ctx context.Context, sessionID int64) (*aggregate.SessionMetrics, error)
	Report(ctx context.Context, sessionID int64) (*store.Report, error)
	Runs(ctx context.Context, sessionID int64, limit int) ([]store.Run, error)
}

type Dispatcher interface {
	Enqueue(sessionID int64) (string, error)
	InFlight(sessionID int64) bool
	Healthy() bool
	Stats() jobs.Stats
}

type Counters interface {
	Snapshot() map[string]int64
}

type Router struct {
	store    Store
	jobs     Dispatcher
	counters Counters
	log      logrus.FieldLogger
}

func NewRouter(st Store, d Dispatcher, c Counters, log logrus.FieldLogger) *Router {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Router{store: st, jobs: d, counters: c, log: log.WithField("component", "http")}
}

// Engine builds the gin engine with every route registered.
func (r *Router) Engine() *gin.Engine {
	e := gin.New()
	e.Use(gin.Recovery(), r.accessLog())
	r.Register(e)
	return e
}

func (r *Router) Register(e *gin.Engine) {
	ops := e.Group("/ops")
	ops.GET("/health", r.health)
	ops.GET("/metrics", r.metrics)

	s := e.Group("/sessions/:id")
	s.GET("", r.session)
	s.POST("/analyze", r.analyze)
	s.GET("/report", r.report)
}

func (r *Router) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		r.log.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("request")
	}
}

func (r *Router) health(c *gin.Context) {
	if err := r.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}
	if r.jobs != nil && !r.jobs.Healthy() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "dispatcher not running"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (r *Router) metrics(c *gin.Context) {
	out := gin.H{}
	if r.counters != nil {
		out["counters"] = r.counters.Snapshot()
	}
	if r.jobs != nil {
		out["queue"] = r.jobs.Stats()
	}
	c.JSON(http.StatusOK, out)
}

func sessionID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return 0, false
	}
	return id, true
}

// loadSession writes the error response itself and returns nil on failure.
func (r *Router) loadSession(c *gin.Context, id int64) *store.Session {
	sess, err := r.store.Session(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil
	}
	if err != nil {
		r.log.WithError(err).WithField("session_id", id).Error("loading session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return nil
	}
	return sess
}

func (r *Router) session(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	sess := r.loadSession(c, id)
	if sess == nil {
		return
	}
	runs, err := r.store.Runs(c.Request.Context(), id, 10)
	if err != nil {
		r.log.WithError(err).WithField("session_id", id).Warn("loading runs")
	}
	c.JSON(http.StatusOK, gin.H{
		"session":   sess,
		"in_flight": r.jobs != nil && r.jobs.InFlight(id),
		"runs":      runs,
	})
}

func (r *Router) analyze(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	if r.loadSession(c, id) == nil {
		return
	}
	if r.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": jobs.ErrNotStarted.Error()})
		return
	}
	jobID, err := r.jobs.Enqueue(id)
	switch {
	case errors.Is(err, jobs.ErrInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "analysis already running", "job_id": jobID})
	case errors.Is(err, jobs.ErrQueueFull), errors.Is(err, jobs.ErrNotStarted):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusAccepted, gin.H{"session_id": id, "job_id": jobID})
	}
}

// report is only served for a completed session; the status field is what
// decides whether results are visible.
func (r *Router) report(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	sess := r.loadSession(c, id)
	if sess == nil {
		return
	}
	if sess.Status != store.StatusComplete {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not available", "status": sess.Status})
		return
	}
	ctx := c.Request.Context()
	rep, err := r.store.Report(ctx, id)
	if err != nil {
		r.fail(c, id, "loading report", err)
		return
	}
	m, err := r.store.Metrics(ctx, id)
	if err != nil {
		r.fail(c, id, "loading metrics", err)
		return
	}
	answers, err := r.store.Answers(ctx, id)
	if err != nil {
		r.fail(c, id, "loading answers", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": id,
		"status":     sess.Status,
		"report":     rep,
		"metrics":    m,
		"answers":    answers,
	})
}

func (r *Router) fail(c *gin.Context, id int64, what string, err error) {
	r.log.WithError(err).WithField("session_id", id).Error(what)
	c.JSON(http.StatusInternalServerError, gin.H{"error": what + " failed"})
}
