package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/blinkenlights/convertster/internal/converter"
	"github.com/blinkenlights/convertster/internal/db"
	"github.com/blinkenlights/convertster/internal/progress"
	"github.com/google/uuid"
)

// HistoryStore persists batches and their outcomes.
type HistoryStore interface {
	CreateBatch(id, target string, total int) error
	InsertOutcome(batchID string, o converter.Outcome) error
	FinishBatch(id string, s converter.Summary) error
	SetIndexStatus(path, status string) error
}

// EventPublisher mirrors outcomes to an external stream.
type EventPublisher interface {
	Publish(ctx context.Context, batchID string, o converter.Outcome) error
	Finish(ctx context.Context, batchID string, s converter.Summary) error
}

// Dispatcher runs batches and reports their outcomes to the tracker, history and events.
type Dispatcher struct {
	conv    *BatchConverter
	tracker *progress.Tracker
	history HistoryStore
	events  EventPublisher

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher. history and events may be nil.
func NewDispatcher(conv *BatchConverter, tracker *progress.Tracker, history HistoryStore, events EventPublisher) *Dispatcher {
	if tracker == nil {
		tracker = progress.NewTracker()
	}
	return &Dispatcher{
		conv:    conv,
		tracker: tracker,
		history: history,
		events:  events,
		cancels: make(map[string]context.CancelFunc),
	}
}

func (d *Dispatcher) Tracker() *progress.Tracker { return d.tracker }

// Run converts paths synchronously and returns the batch id and summary. extra, if not
// nil, is called after the built-in observers for each outcome.
func (d *Dispatcher) Run(ctx context.Context, target string, paths []string, extra converter.Handler) (string, converter.Summary) {
	id := uuid.NewString()
	bctx, done := d.register(ctx, id)
	defer done()
	return id, d.run(ctx, bctx, id, target, paths, extra)
}

// Submit starts a batch in the background and returns its id.
func (d *Dispatcher) Submit(target string, paths []string) string {
	id := uuid.NewString()
	d.tracker.Start(id, target, paths)
	bctx, done := d.register(context.Background(), id)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer done()
		d.run(context.Background(), bctx, id, target, paths, nil)
	}()
	return id
}

// Cancel cancels a running batch. Files that have not finished are reported as skipped.
func (d *Dispatcher) Cancel(id string) bool {
	d.mu.Lock()
	cancel, ok := d.cancels[id]
	d.mu.Unlock()
	if ok {
		log.Printf("[dispatcher] Cancelling batch %s", id)
		cancel()
	}
	return ok
}

// CancelAll cancels every running batch.
func (d *Dispatcher) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, cancel := range d.cancels {
		cancel()
	}
}

// Wait blocks until every submitted batch and every consumer started with StartConsumer finished.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// register makes the batch cancellable through Cancel until done is called.
func (d *Dispatcher) register(parent context.Context, id string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	d.mu.Lock()
	d.cancels[id] = cancel
	d.mu.Unlock()
	return ctx, func() {
		d.mu.Lock()
		delete(d.cancels, id)
		d.mu.Unlock()
		cancel()
	}
}

func (d *Dispatcher) run(parent, ctx context.Context, id, target string, paths []string, extra converter.Handler) converter.Summary {
	if _, ok := d.tracker.Get(id); !ok {
		d.tracker.Start(id, target, paths)
	}
	if d.history != nil {
		if err := d.history.CreateBatch(id, target, len(paths)); err != nil {
			log.Printf("[dispatcher] Failed to record batch %s: %v", id, err)
		}
	}
	log.Printf("[dispatcher] Batch %s: converting %d file(s) to %s", id, len(paths), target)

	// Observers use a context that outlives cancellation so skipped outcomes are still recorded.
	obsCtx := context.WithoutCancel(parent)
	summary := d.conv.Convert(ctx, target, paths, func(o converter.Outcome) {
		d.tracker.Record(id, o)
		if d.history != nil {
			if err := d.history.InsertOutcome(id, o); err != nil {
				log.Printf("[dispatcher] Failed to record outcome for %s: %v", o.Path, err)
			}
		}
		if d.events != nil {
			if err := d.events.Publish(obsCtx, id, o); err != nil {
				log.Printf("[dispatcher] Failed to publish outcome for %s: %v", o.Path, err)
			}
		}
		if extra != nil {
			extra(o)
		}
	})

	d.tracker.Finish(id, summary)
	if d.history != nil {
		if err := d.history.FinishBatch(id, summary); err != nil {
			log.Printf("[dispatcher] Failed to finish batch %s: %v", id, err)
		}
	}
	if d.events != nil {
		if err := d.events.Finish(obsCtx, id, summary); err != nil {
			log.Printf("[dispatcher] Failed to publish summary of %s: %v", id, err)
		}
	}
	msg, _ := progress.Message(summary)
	log.Printf("[dispatcher] Batch %s: %s", id, msg)
	return summary
}

// StartConsumer runs Consume in the background. Wait blocks until it returned.
func (d *Dispatcher) StartConsumer(ctx context.Context, q *Queue, target string, idle time.Duration) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.Consume(ctx, q, target, idle)
	}()
}

// Consume collects paths from q and converts them to target once the queue has been
// idle for idle. The queue keeps draining while a batch runs; paths that arrive
// meanwhile form the next batch. It returns when ctx is done, after the batch in
// flight finished.
func (d *Dispatcher) Consume(ctx context.Context, q *Queue, target string, idle time.Duration) {
	batches := make(chan []string)
	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		for paths := range batches {
			d.Run(ctx, target, paths, func(o converter.Outcome) {
				d.setIndexStatus(o.Path, o.Status.String())
				q.Dequeued(o.Path)
			})
		}
	}()
	defer func() {
		close(batches)
		<-runnerDone
	}()

	var pending []string
	timer := time.NewTimer(idle)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			for _, p := range pending {
				q.Dequeued(p)
			}
			return
		case p := <-q.Chan():
			pending = append(pending, p)
			d.setIndexStatus(p, db.IndexProcessing)
			timer.Reset(idle)
		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			select {
			case batches <- pending:
				pending = nil
			default:
				// previous batch still running
				timer.Reset(idle)
			}
		}
	}
}

func (d *Dispatcher) setIndexStatus(path, status string) {
	if d.history == nil {
		return
	}
	if err := d.history.SetIndexStatus(path, status); err != nil {
		log.Printf("[dispatcher] Failed to update index for %s: %v", path, err)
	}
}
