// Package quorum implements the leader-side synchronous write and
// read paths: fan out to every peer over HTTP, each call bounded by a
// 2-second timeout, and resolve as soon as enough peers have
// responded to satisfy the configured quorum.
package quorum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"distributed-kvstore/internal/entry"
	"distributed-kvstore/internal/store"
)

const peerTimeout = 2 * time.Second

// ErrQuorumNotMet is returned when fewer than the required number of
// peers acknowledged a write, or responded to a read, within the
// fan-out window.
var ErrQuorumNotMet = fmt.Errorf("quorum not met")

type replicateBody struct {
	Entries []entry.LogEntry `json:"entries"`
}

// WriteQuorum fans e out to peers concurrently and returns once acks
// (counting the leader itself as 1) reach required. Peers that
// respond with a non-2xx status, time out, or fail the transport
// count as failures. In-flight requests beyond the quorum are allowed
// to finish; no compensation is performed.
func WriteQuorum(ctx context.Context, client *http.Client, e entry.LogEntry, peers []string, required int) error {
	acks := 1
	if acks >= required {
		return nil
	}

	type outcome struct{ ok bool }
	results := make(chan outcome, len(peers))

	for _, peer := range peers {
		go func(peer string) {
			results <- outcome{ok: postReplicate(ctx, client, peer, []entry.LogEntry{e})}
		}(peer)
	}

	for range peers {
		r := <-results
		if r.ok {
			acks++
			if acks >= required {
				return nil
			}
		}
	}

	return fmt.Errorf("%w: %d/%d acks", ErrQuorumNotMet, acks, required)
}

func postReplicate(ctx context.Context, client *http.Client, peerBase string, entries []entry.LogEntry) bool {
	body, err := json.Marshal(replicateBody{Entries: entries})
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, peerTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, peerBase+"/replicate", bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// peerValue is the wire shape of a GET /key/{key} response, shared by
// the client-facing body and peer-to-peer quorum read collection.
type peerValue struct {
	Data   *string `json:"data"`
	Ts     uint64  `json:"ts"`
	NodeID uint64  `json:"node_id"`
}

// ReadQuorum fans a GET out to every peer, folds in the leader's own
// local contribution, and — once at least required responses are
// collected — returns the value that is newest under the (ts, origin)
// comparator.
//
// A peer response is counted toward the quorum whenever its body can
// be parsed, whether the peer answered 200 (data present) or 404
// (tombstone/absent): both carry a valid ts/origin/data triple needed
// to surface tombstones per the store's comparator. A transport
// failure, timeout, unparseable body, or any other status excludes a
// peer from the count.
func ReadQuorum(ctx context.Context, client *http.Client, key string, local store.Value, localExists bool, selfID uint64, peers []string, required int) (store.Value, error) {
	winner := local
	if !localExists {
		winner = store.Value{Data: nil, Ts: 0, Origin: selfID}
	}
	collected := 1

	type outcome struct {
		val store.Value
		ok  bool
	}
	results := make(chan outcome, len(peers))

	for _, peer := range peers {
		go func(peer string) {
			v, ok := getPeerValue(ctx, client, peer, key)
			results <- outcome{val: v, ok: ok}
		}(peer)
	}

	for range peers {
		r := <-results
		if !r.ok {
			continue
		}
		collected++
		if store.Newer(r.val, winner) {
			winner = r.val
		}
	}

	if collected < required {
		return store.Value{}, fmt.Errorf("%w: %d/%d responses", ErrQuorumNotMet, collected, required)
	}
	return winner, nil
}

func getPeerValue(ctx context.Context, client *http.Client, peerBase, key string) (store.Value, bool) {
	ctx, cancel := context.WithTimeout(ctx, peerTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, peerBase+"/key/"+key, nil)
	if err != nil {
		return store.Value{}, false
	}

	resp, err := client.Do(req)
	if err != nil {
		return store.Value{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return store.Value{}, false
	}

	var pv peerValue
	if err := json.NewDecoder(resp.Body).Decode(&pv); err != nil {
		return store.Value{}, false
	}
	return store.Value{Data: pv.Data, Ts: pv.Ts, Origin: pv.NodeID}, true
}
