package main

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vidsqueeze/vidsqueeze/internal/transcoder"
)

// Sink consumes lifecycle events for a side effect. Sinks run on their own
// worker goroutine so a slow integration never stalls the event stream.
type Sink interface {
	Name() string
	Consume(ctx context.Context, ev transcoder.Event)
}

const (
	subscriberBuffer = 64
	sinkBuffer       = 256
)

// hub fans the sequencer's event stream out to SSE subscribers and sinks.
// Subscriber delivery is best effort; the REST status endpoint is the source
// of truth for clients that fall behind.
type hub struct {
	log zerolog.Logger

	mu   sync.Mutex
	subs map[chan transcoder.Event]struct{}

	sinks   []Sink
	sinkChs []chan transcoder.Event
}

func newHub(log zerolog.Logger, sinks ...Sink) *hub {
	h := &hub{
		log:   log,
		subs:  make(map[chan transcoder.Event]struct{}),
		sinks: sinks,
	}
	for range sinks {
		h.sinkChs = append(h.sinkChs, make(chan transcoder.Event, sinkBuffer))
	}
	return h
}

// Run consumes events until ctx is cancelled. Progress and status updates go
// to subscribers only; lifecycle events additionally feed every sink.
func (h *hub) Run(ctx context.Context, events <-chan transcoder.Event) {
	var wg sync.WaitGroup
	for i, sink := range h.sinks {
		wg.Add(1)
		go func(sink Sink, ch <-chan transcoder.Event) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case ev := <-ch:
					sink.Consume(ctx, ev)
				}
			}
		}(sink, h.sinkChs[i])
	}

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case ev := <-events:
			h.broadcast(ev)
			if isLifecycle(ev) {
				h.dispatch(ev)
			}
		}
	}
}

// Subscribe registers an event channel. The returned cancel func must be
// called when the consumer goes away.
func (h *hub) Subscribe() (<-chan transcoder.Event, func()) {
	ch := make(chan transcoder.Event, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *hub) broadcast(ev transcoder.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *hub) dispatch(ev transcoder.Event) {
	for i, ch := range h.sinkChs {
		select {
		case ch <- ev:
		default:
			h.log.Warn().
				Str("sink", h.sinks[i].Name()).
				Str("event", string(ev.Type)).
				Msg("sink backlog full, dropping event")
		}
	}
}

func isLifecycle(ev transcoder.Event) bool {
	return ev.Type != transcoder.EventFileProgress && ev.Type != transcoder.EventFileStatus
}
