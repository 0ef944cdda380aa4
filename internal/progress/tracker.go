package progress

import (
	"sync"
	"time"

	"github.com/blinkenlights/convertster/internal/converter"
)

// Snapshot is a point-in-time copy of a batch's progress
type Snapshot struct {
	ID         string            `json:"id"`
	Target     string            `json:"target"`
	Total      int               `json:"total"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
	Skipped    int               `json:"skipped"`
	Pending    []string          `json:"pending"`
	LastFile   string            `json:"last_file,omitempty"`
	Done       bool              `json:"done"`
	Cancelled  bool              `json:"cancelled"`
	Indicator  Indicator         `json:"indicator"`
	Message    string            `json:"message,omitempty"`
	StartTime  time.Time         `json:"start_time"`
	LastUpdate time.Time         `json:"last_update"`
	Summary    converter.Summary `json:"-"`
}

// Completed returns the number of files with a known outcome.
func (s Snapshot) Completed() int { return s.Succeeded + s.Failed + s.Skipped }

type entry struct {
	snap    Snapshot
	pending map[string]int // path -> remaining occurrences
}

// Tracker keeps the progress of running and recently finished batches
type Tracker struct {
	mu      sync.RWMutex
	batches map[string]*entry
}

func NewTracker() *Tracker {
	return &Tracker{batches: make(map[string]*entry)}
}

// Start registers a batch
func (t *Tracker) Start(id, target string, paths []string) {
	now := time.Now()
	e := &entry{
		snap: Snapshot{
			ID:         id,
			Target:     target,
			Total:      len(paths),
			Indicator:  Green,
			StartTime:  now,
			LastUpdate: now,
		},
		pending: make(map[string]int, len(paths)),
	}
	for _, p := range paths {
		e.pending[p]++
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.batches[id] = e
}

// Record applies one outcome to a batch
func (t *Tracker) Record(id string, o converter.Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.batches[id]
	if !ok {
		return
	}
	switch o.Status {
	case converter.StatusSucceeded:
		e.snap.Succeeded++
	case converter.StatusFailed:
		e.snap.Failed++
	case converter.StatusSkipped:
		e.snap.Skipped++
	}
	if n := e.pending[o.Path]; n > 1 {
		e.pending[o.Path] = n - 1
	} else {
		delete(e.pending, o.Path)
	}
	e.snap.LastFile = o.Path
	e.snap.LastUpdate = time.Now()
	e.snap.Indicator = Running(e.snap.Succeeded, e.snap.Failed, e.snap.Total-e.snap.Completed())
}

// Finish marks a batch as done with its final summary
func (t *Tracker) Finish(id string, s converter.Summary) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.batches[id]
	if !ok {
		return
	}
	msg, ind := Message(s)
	e.snap.Done = true
	e.snap.Cancelled = s.Cancelled
	e.snap.Summary = s
	e.snap.Message = msg
	e.snap.Indicator = ind
	e.snap.LastUpdate = time.Now()
}

// Get retrieves a copy of a batch's progress
func (t *Tracker) Get(id string) (Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.batches[id]
	if !ok {
		return Snapshot{}, false
	}
	return e.copy(), true
}

// Active returns copies of all batches that have not finished
func (t *Tracker) Active() []Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]Snapshot, 0, len(t.batches))
	for _, e := range t.batches {
		if !e.snap.Done {
			result = append(result, e.copy())
		}
	}
	return result
}

// CleanOld removes finished batches that haven't been updated within maxAge
func (t *Tracker) CleanOld(maxAge time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	for id, e := range t.batches {
		if e.snap.Done && now.Sub(e.snap.LastUpdate) > maxAge {
			delete(t.batches, id)
		}
	}
}

func (e *entry) copy() Snapshot {
	s := e.snap
	s.Pending = make([]string, 0, len(e.pending))
	for p, n := range e.pending {
		for i := 0; i < n; i++ {
			s.Pending = append(s.Pending, p)
		}
	}
	return s
}
