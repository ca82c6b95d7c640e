// Package session owns one artifact stream per chat session.
//
// A Provider holds the reducer state of a single session and is the only
// thing that mutates it. Consumers read immutable snapshots through State
// or subscribe to changes. Providers are scoped explicitly: they travel in a
// context.Context (WithProvider / FromContext) or are looked up by session
// id in a Registry. There is no package-level default provider.
package session

import (
	"maps"
	"slices"
	"sync"

	"github.com/pithecene-io/vantage/stream"
	"github.com/pithecene-io/vantage/types"
)

// Change describes one dispatched action.
type Change struct {
	// Action is the dispatched action.
	Action stream.Action
	// Applied is false when a guarded action (update or error) did not
	// match the current artifact. History entries may still have changed.
	Applied bool
	// Prev is the snapshot before the action.
	Prev stream.State
	// Next is the snapshot after the action.
	Next stream.State
}

// Subscriber receives changes.
type Subscriber func(Change)

// Provider owns the artifact stream state of one chat session.
//
// Provider is safe for concurrent use. Subscribers run outside the state
// lock, one change at a time, in dispatch order. A subscriber may read State
// or dispatch further actions; those are delivered after the current one.
type Provider struct {
	mu       sync.Mutex
	state    stream.State
	subs     map[uint64]Subscriber
	nextSub  uint64
	pending  []Change
	draining bool
}

// NewProvider creates a provider with empty state.
func NewProvider() *Provider {
	return &Provider{
		state: stream.Initial(),
		subs:  make(map[uint64]Subscriber),
	}
}

// State returns the current snapshot.
func (p *Provider) State() stream.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// ProcessDataPart decodes part and dispatches the resulting action.
// It returns true if the part was an artifact part, false if the caller
// should forward it elsewhere. It never panics on malformed data.
func (p *Provider) ProcessDataPart(part types.DataPart) bool {
	_, ok := p.Process(part)
	return ok
}

// Process is ProcessDataPart that also returns the dispatched change. The
// change is the zero value when ok is false.
func (p *Provider) Process(part types.DataPart) (ch Change, ok bool) {
	ok = stream.ProcessPart(part, func(a stream.Action) {
		ch = p.Dispatch(a)
	})
	return ch, ok
}

// Reset discards all state.
func (p *Provider) Reset() {
	p.Dispatch(stream.Reset())
}

// Select makes the history entry with id current. It returns false if no
// such entry exists.
func (p *Provider) Select(id string) bool {
	ch := p.Dispatch(stream.Select(id))
	return slices.ContainsFunc(ch.Prev.History, func(a types.Artifact) bool { return a.ID == id })
}

// Dispatch applies action and notifies subscribers. The returned Change
// reflects this action alone, even when other goroutines dispatch
// concurrently. Actions that leave the state unchanged are not delivered to
// subscribers.
func (p *Provider) Dispatch(action stream.Action) Change {
	p.mu.Lock()
	prev := p.state
	next := stream.Reduce(prev, action)
	p.state = next
	ch := Change{
		Action:  action,
		Applied: !stream.IsStale(prev, action),
		Prev:    prev,
		Next:    next,
	}
	if !stream.Changed(prev, next) {
		p.mu.Unlock()
		return ch
	}
	p.pending = append(p.pending, ch)
	if p.draining {
		p.mu.Unlock()
		return ch
	}
	p.draining = true
	p.mu.Unlock()

	p.drain()
	return ch
}

// drain delivers pending changes until the queue is empty. Exactly one
// goroutine drains at a time, which keeps delivery in dispatch order.
func (p *Provider) drain() {
	for {
		p.mu.Lock()
		if len(p.pending) == 0 {
			p.draining = false
			p.mu.Unlock()
			return
		}
		ch := p.pending[0]
		p.pending = p.pending[1:]
		subs := make([]Subscriber, 0, len(p.subs))
		for _, id := range slices.Sorted(maps.Keys(p.subs)) {
			subs = append(subs, p.subs[id])
		}
		p.mu.Unlock()

		for _, fn := range subs {
			fn(ch)
		}
	}
}

// Subscribe registers fn for every subsequent change. The returned function
// removes the subscription; it is safe to call more than once.
func (p *Provider) Subscribe(fn Subscriber) (cancel func()) {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		})
	}
}
