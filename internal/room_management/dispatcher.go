package room_management

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"peerprep/interview/internal/models"
)

// dispatcher delivers room events to listeners off the caller's goroutine.
// Every room owns an eventQueue that is filled while the room lock is held, so
// listeners see one room's events in the order they were committed.
type dispatcher struct {
	mu        sync.Mutex
	idle      *sync.Cond
	inflight  int
	listeners []Listener
	logger    *zap.Logger
}

func newDispatcher(logger *zap.Logger, listeners []Listener) *dispatcher {
	d := &dispatcher{listeners: listeners, logger: logger}
	d.idle = sync.NewCond(&d.mu)
	return d
}

func (d *dispatcher) addListener(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

func (d *dispatcher) newQueue() *eventQueue {
	return &eventQueue{d: d}
}

func (d *dispatcher) track(delta int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inflight += delta
	if d.inflight == 0 {
		d.idle.Broadcast()
	}
}

// flush blocks until every queued event has reached every listener.
func (d *dispatcher) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.inflight > 0 {
		d.idle.Wait()
	}
}

func (d *dispatcher) deliver(event models.Event) {
	d.mu.Lock()
	listeners := append([]Listener(nil), d.listeners...)
	d.mu.Unlock()

	for _, l := range listeners {
		d.handle(l, event)
	}
}

func (d *dispatcher) handle(l Listener, event models.Event) {
	defer func() {
		if p := recover(); p != nil {
			d.logger.Error("room listener panicked",
				zap.String("type", string(event.Type)),
				zap.String("roomId", event.RoomID),
				zap.Any("panic", p))
		}
	}()
	l.HandleEvent(context.Background(), event)
}

// eventQueue is one room's FIFO of undelivered events. At most one goroutine
// drains it at a time.
type eventQueue struct {
	d       *dispatcher
	mu      sync.Mutex
	pending []models.Event
	running bool
}

// push is called with the room lock held and never waits on a listener.
func (q *eventQueue) push(events []models.Event) {
	if len(events) == 0 {
		return
	}
	q.d.track(len(events))

	q.mu.Lock()
	q.pending = append(q.pending, events...)
	start := !q.running
	q.running = true
	q.mu.Unlock()

	if start {
		go q.drain()
	}
}

func (q *eventQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		event := q.pending[0]
		q.pending[0] = models.Event{}
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.d.deliver(event)
		q.d.track(-1)
	}
}
