package hub

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/safem8/controller/internal/alert"
	"github.com/safem8/controller/internal/monitor"
)

const (
	fullSyncInterval = 5 * time.Second
	deltaCountSync   = 100
)

// Feed supplies sensor state: a stream of changes, which may skip
// snapshots, and the authoritative current snapshot.
type Feed interface {
	Changes() <-chan monitor.Snapshot
	Snapshot() monitor.Snapshot
}

// Broadcaster turns sensor snapshots into full and delta messages for the
// hub. It also implements alert.Notifier.
type Broadcaster struct {
	hub       *Hub
	seq       atomic.Int64
	log       zerolog.Logger
	syncEvery time.Duration

	mu        sync.RWMutex
	feed      Feed
	lastState monitor.Snapshot
}

func NewBroadcaster(h *Hub) *Broadcaster {
	return &Broadcaster{
		hub:       h,
		log:       h.log.With().Str("component", "broadcaster").Logger(),
		syncEvery: fullSyncInterval,
	}
}

// Run forwards changes from feed until its channel is closed or ctx is
// cancelled. Every deltaCountSync deltas, and every syncEvery, the feed's
// current snapshot is sent in full so clients recover from skipped changes.
func (b *Broadcaster) Run(ctx context.Context, feed Feed) {
	b.mu.Lock()
	b.feed = feed
	b.mu.Unlock()

	ticker := time.NewTicker(b.syncEvery)
	defer ticker.Stop()

	var deltaCount int64
	changes := feed.Changes()

	for {
		select {
		case <-ctx.Done():
			return

		case snap, ok := <-changes:
			if !ok {
				return
			}

			b.mu.Lock()
			delta := monitor.ComputeDelta(b.lastState, snap)
			b.lastState = snap
			b.mu.Unlock()

			if delta.IsEmpty() {
				continue
			}

			deltaCount++
			if deltaCount >= deltaCountSync {
				b.resync()
				deltaCount = 0
			} else {
				b.sendDelta(delta)
			}

		case <-ticker.C:
			b.resync()
		}
	}
}

// resync broadcasts the feed's current snapshot and makes it the base for
// later deltas.
func (b *Broadcaster) resync() {
	snap := b.feed.Snapshot()
	b.mu.Lock()
	b.lastState = snap.Clone()
	b.mu.Unlock()
	b.sendFull(snap)
}

// current returns the feed's snapshot, or the last forwarded one before Run
// has started.
func (b *Broadcaster) current() monitor.Snapshot {
	b.mu.RLock()
	feed, snap := b.feed, b.lastState.Clone()
	b.mu.RUnlock()
	if feed != nil {
		return feed.Snapshot()
	}
	return snap
}

// SendInitialState sends the current full state to a newly connected client.
func (b *Broadcaster) SendInitialState(c *Client) {
	snap := b.current()
	data, err := json.Marshal(NewFullMessage(b.seq.Add(1), &snap))
	if err != nil {
		b.log.Error().Err(err).Msg("Error marshaling initial state")
		return
	}
	b.hub.Send(c, data)
}

// Notify broadcasts an alert event to every panel.
func (b *Broadcaster) Notify(_ context.Context, a alert.Alert) error {
	data, err := json.Marshal(NewAlertMessage(b.seq.Add(1), a))
	if err != nil {
		return err
	}
	b.hub.Broadcast(data)
	return nil
}

func (b *Broadcaster) sendFull(snap monitor.Snapshot) {
	data, err := json.Marshal(NewFullMessage(b.seq.Add(1), &snap))
	if err != nil {
		b.log.Error().Err(err).Msg("Error marshaling full message")
		return
	}
	b.hub.Broadcast(data)
}

func (b *Broadcaster) sendDelta(delta *monitor.Delta) {
	data, err := json.Marshal(NewDeltaMessage(b.seq.Add(1), delta))
	if err != nil {
		b.log.Error().Err(err).Msg("Error marshaling delta message")
		return
	}
	b.hub.Broadcast(data)
}
