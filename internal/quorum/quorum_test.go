package quorum

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"distributed-kvstore/internal/entry"
	"distributed-kvstore/internal/store"
)

func ackServer(status int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
}

func TestWriteQuorumMetWithEnoughAcks(t *testing.T) {
	p1 := ackServer(http.StatusOK)
	defer p1.Close()
	p2 := ackServer(http.StatusOK)
	defer p2.Close()

	e := entry.Put(1, 1, "k", "v")
	err := WriteQuorum(context.Background(), http.DefaultClient, e, []string{p1.URL, p2.URL}, 2)
	if err != nil {
		t.Fatalf("expected quorum met, got %v", err)
	}
}

func TestWriteQuorumNotMet(t *testing.T) {
	p1 := ackServer(http.StatusInternalServerError)
	defer p1.Close()
	p2 := ackServer(http.StatusInternalServerError)
	defer p2.Close()

	e := entry.Put(1, 1, "k", "v")
	err := WriteQuorum(context.Background(), http.DefaultClient, e, []string{p1.URL, p2.URL}, 3)
	if err == nil {
		t.Fatalf("expected quorum not met error")
	}
}

func TestWriteQuorumLeaderAloneSatisfies(t *testing.T) {
	// required == 1 means the leader alone is sufficient; no peers
	// need to be contacted at all.
	e := entry.Put(1, 1, "k", "v")
	err := WriteQuorum(context.Background(), http.DefaultClient, e, nil, 1)
	if err != nil {
		t.Fatalf("expected single-node quorum to be trivially met: %v", err)
	}
}

func valueServer(status int, pv peerValue) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(pv)
	}))
}

func TestReadQuorumPicksNewestAcrossPeers(t *testing.T) {
	older := "old"
	newer := "new"

	p1 := valueServer(http.StatusOK, peerValue{Data: &older, Ts: 5, NodeID: 2})
	defer p1.Close()
	p2 := valueServer(http.StatusOK, peerValue{Data: &newer, Ts: 10, NodeID: 3})
	defer p2.Close()

	local := store.Value{Data: &older, Ts: 5, Origin: 1}
	winner, err := ReadQuorum(context.Background(), http.DefaultClient, "k", local, true, 1, []string{p1.URL, p2.URL}, 2)
	if err != nil {
		t.Fatalf("ReadQuorum: %v", err)
	}
	if winner.Data == nil || *winner.Data != "new" || winner.Ts != 10 {
		t.Fatalf("expected newest value to win, got %+v", winner)
	}
}

func TestReadQuorumCountsTombstone404(t *testing.T) {
	// A 404 response still carries a valid ts/origin and must count
	// toward the quorum so a DELETE can surface over a stale PUT.
	p1 := valueServer(http.StatusNotFound, peerValue{Data: nil, Ts: 20, NodeID: 2})
	defer p1.Close()

	local := store.Value{Data: strPtr("stale"), Ts: 5, Origin: 1}
	winner, err := ReadQuorum(context.Background(), http.DefaultClient, "k", local, true, 1, []string{p1.URL}, 2)
	if err != nil {
		t.Fatalf("expected quorum met counting the 404 peer, got %v", err)
	}
	if winner.Data != nil {
		t.Fatalf("expected tombstone to win over stale local PUT, got %+v", winner)
	}
}

func TestReadQuorumNotMetOnTransportFailures(t *testing.T) {
	local := store.Value{Data: strPtr("v"), Ts: 1, Origin: 1}
	_, err := ReadQuorum(context.Background(), http.DefaultClient, "k", local, true, 1, []string{"http://127.0.0.1:1"}, 2)
	if err == nil {
		t.Fatalf("expected quorum not met when peer is unreachable")
	}
}

func strPtr(s string) *string { return &s }
