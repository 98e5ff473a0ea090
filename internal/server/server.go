package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agentScope/internal/indexer"
	"agentScope/internal/storage"
)

// ErrSyncInProgress is returned when a trigger arrives while a run is
// already executing. Runs never overlap: the checkpoint advance is not safe
// against concurrent writers.
var ErrSyncInProgress = errors.New("sync already running")

// Server exposes the read-only checkpoint peek and the on-demand sync
// trigger. The same TryLock guard serializes HTTP triggers and the periodic
// ticker.
type Server struct {
	runner *indexer.Runner
	store  storage.Store
	logger *zap.Logger
	mu     sync.Mutex
}

func New(runner *indexer.Runner, store storage.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{runner: runner, store: store, logger: logger}
}

// Router builds the gin handler tree.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.health)
	router.GET("/sync/status", s.status)
	router.POST("/sync/trigger", s.trigger)

	return router
}

// RunOnce executes a single guarded sync run. Used by both the trigger
// endpoint and the periodic scheduler.
func (s *Server) RunOnce(ctx context.Context) (indexer.Summary, error) {
	if !s.mu.TryLock() {
		return indexer.Summary{}, ErrSyncInProgress
	}
	defer s.mu.Unlock()

	return s.runner.Run(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) status(c *gin.Context) {
	block, ok, err := s.store.LastSyncedBlock(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var lastSynced interface{}
	if ok {
		lastSynced = block
	}
	c.JSON(http.StatusOK, gin.H{
		"lastSyncedBlock": lastSynced,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) trigger(c *gin.Context) {
	summary, err := s.RunOnce(c.Request.Context())
	if err != nil {
		if errors.Is(err, ErrSyncInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("sync trigger failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}
