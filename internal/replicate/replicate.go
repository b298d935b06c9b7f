// Package replicate implements the leader's asynchronous, batched
// per-peer replication fan-out: one goroutine per peer, each batching
// incoming LogEntries up to BatchMax or until FlushInterval elapses,
// whichever comes first, and never blocking the write path that feeds
// it.
package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"distributed-kvstore/internal/cluster"
	"distributed-kvstore/internal/entry"
)

const (
	// BatchMax is the largest batch a peer worker will accumulate
	// before flushing, even if the flush interval hasn't elapsed.
	BatchMax = 128
	// FlushInterval is how often a peer worker flushes a non-empty
	// batch that hasn't yet reached BatchMax.
	FlushInterval = 500 * time.Millisecond
	// peerChanSize bounds how far a peer can lag the leader before
	// enqueue starts dropping entries for it rather than blocking.
	peerChanSize = 1024
	peerTimeout  = 2 * time.Second
)

type replicateBody struct {
	Entries []entry.LogEntry `json:"entries"`
}

// Replicator fans committed LogEntries out to every peer without ever
// blocking the caller: Enqueue is a try-send, so a wedged or slow peer
// only ever falls behind its own queue, not the leader's write path.
type Replicator struct {
	client *http.Client
	view   *cluster.View

	mu       sync.Mutex
	peerChan map[string]chan entry.LogEntry
	done     chan struct{}
	wg       sync.WaitGroup
}

// New builds a Replicator for the peers in view. It spawns no
// workers; Start does that.
func New(view *cluster.View, client *http.Client) *Replicator {
	if client == nil {
		client = &http.Client{}
	}
	return &Replicator{
		client:   client,
		view:     view,
		peerChan: make(map[string]chan entry.LogEntry),
		done:     make(chan struct{}),
	}
}

// Start launches one worker per peer. Safe to call once; calling it
// again after Stop is not supported, matching the static-membership
// scope of this node.
func (r *Replicator) Start() {
	for _, peer := range r.view.Peers() {
		ch := make(chan entry.LogEntry, peerChanSize)
		r.peerChan[peer] = ch
		r.wg.Add(1)
		go r.peerWorker(peer, ch)
	}
}

// Enqueue broadcasts e to every peer worker. Each send is a try-send:
// a peer whose channel is full is skipped for this entry rather than
// stalling the leader, since the peer will still receive later
// entries and can be caught up out-of-band once reachable again.
func (r *Replicator) Enqueue(e entry.LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for peer, ch := range r.peerChan {
		select {
		case ch <- e:
		default:
			log.Printf("replicate: dropping entry for lagging peer %s", peer)
		}
	}
}

// Stop signals every peer worker to flush and exit, then waits for
// them to finish.
func (r *Replicator) Stop() {
	close(r.done)
	r.wg.Wait()
}

func (r *Replicator) peerWorker(peer string, ch chan entry.LogEntry) {
	defer r.wg.Done()

	url := peer + "/replicate"
	batch := make([]entry.LogEntry, 0, BatchMax)
	ticker := time.NewTicker(FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if !r.view.IsAlive(peer) {
			// Skip missed: don't bother sending to a peer we believe
			// is down, but keep the batch buffered (bounded only by
			// the channel's capacity) so it can catch up in one shot
			// on the next tick once the peer is alive again.
			return
		}
		if err := send(r.client, url, batch); err != nil {
			log.Printf("replicate: flush to %s failed: %v", peer, err)
		}
		batch = batch[:0]
	}

	for {
		in := ch
		if len(batch) >= BatchMax && !r.view.IsAlive(peer) {
			// Full batch for a dead peer: stop draining, so the backlog
			// waits in the bounded channel instead of growing the batch.
			in = nil
		}
		select {
		case e, ok := <-in:
			if !ok {
				flush()
				return
			}
			batch = append(batch, e)
			if len(batch) >= BatchMax {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-r.done:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case e := <-ch:
					batch = append(batch, e)
					if len(batch) >= BatchMax {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

func send(client *http.Client, url string, batch []entry.LogEntry) error {
	body, err := json.Marshal(replicateBody{Entries: batch})
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), peerTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("peer returned status %d", resp.StatusCode)
	}
	return nil
}
