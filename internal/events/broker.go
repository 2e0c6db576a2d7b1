// Package events fans sync-layer changes out to Server-Sent Events clients.
package events

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/starford/applysync/internal/status"
)

// Event types.
const (
	ApplicationCreated  = "application.created"
	ApplicationUpdated  = "application.updated"
	ApplicationDeleted  = "application.deleted"
	ApplicationsChanged = "applications.changed"
	ApplicationsError   = "applications.error"
	NotesChanged        = "notes.changed"
	SessionInvalid      = "session.invalid"
)

// Event is one message broadcast to subscribers.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Record kinds.
const (
	Created = "created"
	Updated = "updated"
	Deleted = "deleted"
)

// Record describes a change to one application. Status is the displayed
// status after the change and is empty for deletions.
type Record struct {
	Kind    string         `json:"-"`
	ID      string         `json:"id"`
	Status  status.Display `json:"status,omitempty"`
	Company string         `json:"company,omitempty"`
}

// Type is the SSE event name for r.
func (r Record) Type() string {
	return "application." + r.Kind
}

// Publisher is what the stores emit into.
type Publisher interface {
	Publish(Event)
	// PublishRecord announces a change to one application. Subscribers also
	// receive a throttled applications.changed.
	PublishRecord(Record)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Event)        {}
func (Nop) PublishRecord(Record) {}

const (
	// backlogSize frames are kept for clients reconnecting with Last-Event-ID.
	backlogSize      = 64
	defaultHeartbeat = 15 * time.Second
)

type frame struct {
	id  uint64
	raw []byte
}

type subscription struct {
	ch    chan []byte
	after uint64
}

// Broker manages SSE client connections and broadcasts events.
//
// A single loop goroutine owns the client set, the frame counter, the replay
// backlog and the throttle timestamp. Public methods talk to it over channels.
type Broker struct {
	changedMin time.Duration
	heartbeat  time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	recordCh      chan Record
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

var _ Publisher = (*Broker)(nil)

// NewBroker creates a broker that emits applications.changed at most once
// per throttle interval for record events.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = 500 * time.Millisecond
	}
	b := &Broker{
		changedMin:    throttle,
		heartbeat:     defaultHeartbeat,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		recordCh:      make(chan Record, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go b.run()
	return b
}

// stream is the loop-owned state.
type stream struct {
	clients     map[chan []byte]struct{}
	backlog     []frame
	nextID      uint64
	lastChanged time.Time
}

func (st *stream) broadcast(event Event) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return
	}
	st.nextID++
	f := frame{id: st.nextID, raw: []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", st.nextID, event.Type, payload))}
	if len(st.backlog) == backlogSize {
		st.backlog = append(st.backlog[:0], st.backlog[1:]...)
	}
	st.backlog = append(st.backlog, f)
	for ch := range st.clients {
		select {
		case ch <- f.raw:
		default:
			// Slow client; drop rather than stall the loop.
		}
	}
}

// replay queues the backlog frames newer than after. The client channel is
// at least backlogSize deep, so this never blocks.
func (st *stream) replay(sub subscription) {
	if sub.after == 0 {
		return
	}
	for _, f := range st.backlog {
		if f.id > sub.after {
			sub.ch <- f.raw
		}
	}
}

func (b *Broker) run() {
	defer close(b.stopped)

	st := &stream{clients: make(map[chan []byte]struct{})}
	for {
		select {
		case <-b.stopCh:
			for ch := range st.clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			st.replay(sub)
			st.clients[sub.ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := st.clients[ch]; ok {
				delete(st.clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			if event.Type == ApplicationsChanged {
				st.lastChanged = time.Now()
			}
			st.broadcast(event)

		case rec := <-b.recordCh:
			st.broadcast(Event{Type: rec.Type(), Data: rec})
			if now := time.Now(); now.Sub(st.lastChanged) >= b.changedMin {
				st.lastChanged = now
				st.broadcast(Event{Type: ApplicationsChanged, Data: map[string]string{"cause": rec.Type()}})
			}

		case resp := <-b.countReqCh:
			resp <- len(st.clients)
		}
	}
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client and returns its channel. Frames published after
// the frame numbered after are replayed first, as far as the backlog
// reaches; zero replays nothing.
func (b *Broker) Subscribe(after uint64) chan []byte {
	ch := make(chan []byte, backlogSize)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribeCh <- subscription{ch: ch, after: after}:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish implements Publisher.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishRecord implements Publisher.
func (b *Broker) PublishRecord(rec Record) {
	if b.closed.Load() {
		return
	}
	select {
	case b.recordCh <- rec:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /events). A reconnecting
// EventSource sends Last-Event-ID and receives what it missed. Idle streams
// get a comment line every heartbeat so proxies keep them open.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	after, _ := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "retry: %d\n\n", (3 * time.Second).Milliseconds())
	flusher.Flush()

	ch := b.Subscribe(after)
	defer b.Unsubscribe(ch)

	heartbeat := time.NewTicker(b.heartbeat)
	defer heartbeat.Stop()

	for {
		var msg []byte
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			msg = []byte(": keepalive\n\n")
		case m, ok := <-ch:
			if !ok {
				return
			}
			msg = m
		}
		if _, err := w.Write(msg); err != nil {
			return
		}
		flusher.Flush()
	}
}
