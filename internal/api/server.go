package api

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/blinkenlights/convertster/internal/converter"
	"github.com/blinkenlights/convertster/internal/db"
	"github.com/blinkenlights/convertster/internal/watcher"
	"github.com/blinkenlights/convertster/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Server struct {
	Router *gin.Engine
	db     *db.DB
	disp   *worker.Dispatcher
	queue  *worker.Queue
	watch  *watcher.Watcher
	roots  []string

	jobsMu sync.Mutex
	jobs   map[string]*ScanJob
}

type ScanJob struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"` // running/done/failed
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Queued    int       `json:"queued"`
	Error     string    `json:"error,omitempty"`
}

type batchRequest struct {
	Target string   `json:"target" binding:"required"`
	Paths  []string `json:"paths" binding:"required,min=1"`
}

// NewServer wires the HTTP routes. queue and w may be nil when watch mode is off.
// Submitted batches may only name files below one of roots.
func NewServer(database *db.DB, disp *worker.Dispatcher, q *worker.Queue, w *watcher.Watcher, roots []string) *Server {
	g := gin.Default()
	s := &Server{Router: g, db: database, disp: disp, queue: q, watch: w, jobs: map[string]*ScanJob{}}
	for _, r := range roots {
		if abs, err := filepath.Abs(r); err == nil {
			s.roots = append(s.roots, abs)
		}
	}

	api := g.Group("/api")
	api.POST("/batches", s.createBatch)
	api.GET("/batches", s.listBatches)
	api.GET("/batches/:id", s.getBatch)
	api.POST("/batches/:id/cancel", s.cancelBatch)
	api.GET("/batches/:id/outcomes", s.listOutcomes)
	api.GET("/files", s.listFiles)
	api.GET("/stats", s.getStats)
	api.POST("/scan-now", s.scanNow)
	api.GET("/scan-status/:id", s.scanStatus)

	return s
}

func (s *Server) createBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := converter.ParseFormat(req.Target); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, p := range req.Paths {
		if err := s.checkPath(p); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
	}
	id := s.disp.Submit(req.Target, req.Paths)
	c.JSON(http.StatusAccepted, gin.H{"batch_id": id})
}

// checkPath rejects relative paths and paths outside the allowed roots.
func (s *Server) checkPath(p string) error {
	if !filepath.IsAbs(p) {
		return fmt.Errorf("path %q is not absolute", p)
	}
	p = filepath.Clean(p)
	for _, root := range s.roots {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("path %q is outside the allowed directories", p)
}

func (s *Server) listBatches(c *gin.Context) {
	limit := parseIntDefault(c.Query("limit"), 50)
	offset := parseIntDefault(c.Query("offset"), 0)
	history, err := s.db.ListBatches(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": s.disp.Tracker().Active(), "history": history})
}

func (s *Server) getBatch(c *gin.Context) {
	id := c.Param("id")
	if snap, ok := s.disp.Tracker().Get(id); ok {
		c.JSON(http.StatusOK, snap)
		return
	}
	b, err := s.db.GetBatch(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if b == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) cancelBatch(c *gin.Context) {
	if !s.disp.Cancel(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

func (s *Server) listOutcomes(c *gin.Context) {
	rows, err := s.db.ListOutcomes(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) listFiles(c *gin.Context) {
	limit := parseIntDefault(c.Query("limit"), 50)
	offset := parseIntDefault(c.Query("offset"), 0)
	rows, err := s.db.ListIndex(c.Query("status"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

func (s *Server) getStats(c *gin.Context) {
	stats, err := s.db.GetStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	queueLen := 0
	if s.queue != nil {
		queueLen = s.queue.Len()
	}
	watcherState := "disabled"
	if s.watch != nil {
		watcherState = "running"
		if s.watch.Paused() {
			watcherState = "paused"
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"stats":          stats,
		"active_batches": len(s.disp.Tracker().Active()),
		"queue_len":      queueLen,
		"watcher_state":  watcherState,
	})
}

func (s *Server) scanNow(c *gin.Context) {
	if s.watch == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "watch mode is disabled"})
		return
	}
	job := &ScanJob{ID: uuid.NewString(), Status: "running", StartedAt: time.Now()}
	s.jobsMu.Lock()
	s.jobs[job.ID] = job
	s.jobsMu.Unlock()
	go s.runScan(job)
	c.JSON(http.StatusOK, gin.H{"job_id": job.ID})
}

func (s *Server) runScan(job *ScanJob) {
	n, err := s.watch.ScanAll(context.Background())
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	job.Queued = n
	job.Status = "done"
	if err != nil {
		job.Status = "failed"
		job.Error = err.Error()
	}
	job.EndedAt = time.Now()
}

func (s *Server) scanStatus(c *gin.Context) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	job, ok := s.jobs[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
