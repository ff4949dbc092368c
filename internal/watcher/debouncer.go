package watcher

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of events per path. Every event restarts its
// path's timer; when the timer fires the merged event is queued and
// emitted in the next batch. Merging keeps the last event's effect:
//   - ... + DELETE = DELETE (the note is gone)
//   - CREATE + MODIFY = CREATE (the note is still new)
//   - DELETE + CREATE = MODIFY (the note was replaced)
//   - otherwise the latest event
//
// Batches are never dropped; a slow consumer backs up the queue instead.
type Debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending map[string]*pendingEvent
	ready   []FileEvent
	notify  chan struct{}
	output  chan []FileEvent
	stopCh  chan struct{}
	done    chan struct{}
	stopped bool
}

type pendingEvent struct {
	event   FileEvent
	firstOp Operation
	timer   *time.Timer
	gen     uint64
}

// NewDebouncer creates a debouncer with the given quiet window.
func NewDebouncer(window time.Duration) *Debouncer {
	d := &Debouncer{
		window:  window,
		pending: make(map[string]*pendingEvent),
		notify:  make(chan struct{}, 1),
		output:  make(chan []FileEvent, 16),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Add records an event and restarts the timer of its path.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	pe, ok := d.pending[event.Path]
	if !ok {
		pe = &pendingEvent{event: event, firstOp: event.Operation}
		d.pending[event.Path] = pe
	} else {
		pe.timer.Stop()
		pe.event = merge(pe.firstOp, event)
	}

	pe.gen++
	gen, path := pe.gen, event.Path
	pe.timer = time.AfterFunc(d.window, func() { d.fire(path, gen) })
}

// merge combines the first operation seen for a path with its latest event.
func merge(first Operation, latest FileEvent) FileEvent {
	switch {
	case latest.Operation == OpDelete:
	case first == OpCreate:
		latest.Operation = OpCreate
	case first == OpDelete:
		latest.Operation = OpModify
	}
	return latest
}

// fire queues the event of path unless a later Add superseded gen.
func (d *Debouncer) fire(path string, gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pe, ok := d.pending[path]
	if d.stopped || !ok || pe.gen != gen {
		return
	}
	delete(d.pending, path)
	d.enqueue(pe.event)
}

// enqueue must be called with d.mu held.
func (d *Debouncer) enqueue(ev FileEvent) {
	d.ready = append(d.ready, ev)
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// Flush emits every pending event without waiting for its window.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	for path, pe := range d.pending {
		pe.timer.Stop()
		delete(d.pending, path)
		d.enqueue(pe.event)
	}
}

// Pending returns the number of paths waiting for their window to pass.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Debouncer) run() {
	defer close(d.done)
	defer close(d.output)

	for {
		select {
		case <-d.stopCh:
			return
		case <-d.notify:
		}

		d.mu.Lock()
		batch := d.ready
		d.ready = nil
		d.mu.Unlock()
		if len(batch) == 0 {
			continue
		}

		select {
		case d.output <- batch:
		case <-d.stopCh:
			return
		}
	}
}

// Output returns the channel of debounced batches. It is closed by Stop.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Stop cancels pending timers and closes the output channel. Events not
// yet emitted are discarded. Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	for _, pe := range d.pending {
		pe.timer.Stop()
	}
	d.pending = nil
	close(d.stopCh)
	d.mu.Unlock()

	<-d.done
}
