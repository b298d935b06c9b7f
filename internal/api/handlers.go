// Package api wires up the Gin HTTP router with all handler functions
// for the node's client-facing and peer-facing surface.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"distributed-kvstore/internal/apply"
	"distributed-kvstore/internal/clock"
	"distributed-kvstore/internal/cluster"
	"distributed-kvstore/internal/entry"
	"distributed-kvstore/internal/metrics"
	"distributed-kvstore/internal/quorum"
	"distributed-kvstore/internal/replicate"
	"distributed-kvstore/internal/store"
	"distributed-kvstore/internal/wal"
)

// Handler holds all dependencies injected from main.
type Handler struct {
	store      *store.Store
	wal        *wal.WAL
	clock      *clock.Clock
	view       *cluster.View
	replicator *replicate.Replicator
	metrics    *metrics.Metrics
	httpClient *http.Client
}

// NewHandler creates a Handler.
func NewHandler(s *store.Store, w *wal.WAL, clk *clock.Clock, v *cluster.View, rep *replicate.Replicator, m *metrics.Metrics, client *http.Client) *Handler {
	if client == nil {
		client = &http.Client{}
	}
	return &Handler{store: s, wal: w, clock: clk, view: v, replicator: rep, metrics: m, httpClient: client}
}

// Register mounts all routes on r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/ping", h.Ping)
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	r.PUT("/key/:key", h.Put)
	r.GET("/key/:key", h.Get)
	r.DELETE("/key/:key", h.Delete)

	r.POST("/replicate", h.Replicate)
}

// valueBody is the wire shape of a stored value, shared by GET
// responses on both the client-facing and peer-facing paths.
type valueBody struct {
	Data   *string `json:"data"`
	Ts     uint64  `json:"ts"`
	NodeID uint64  `json:"node_id"`
}

func (h *Handler) respondValue(c *gin.Context, v store.Value) {
	status := http.StatusOK
	if v.IsTombstone() {
		status = http.StatusNotFound
	}
	c.JSON(status, valueBody{Data: v.Data, Ts: v.Ts, NodeID: v.Origin})
}

// Put handles PUT /key/:key. Body: {"value": "<string>"}.
//
// Only the leader accepts writes: the synchronous quorum fan-out in
// §4.5 is defined leader-side, and this node has no forwarding path to
// the leader (out of scope — the external collaborator that routes
// clients to the current leader is assumed to exist upstream).
func (h *Handler) Put(c *gin.Context) {
	key := c.Param("key")

	var body struct {
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.metrics.Errors.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.view.IsLeader() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not leader"})
		return
	}

	ts := h.clock.TickSend()
	origin := h.view.NodeID()
	e := entry.Put(ts, origin, key, body.Value)

	if err := h.wal.AppendSync(e); err != nil {
		h.metrics.Errors.WithLabelValues("durability").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	value := body.Value
	h.store.Put(key, store.Value{Data: &value, Ts: ts, Origin: origin})
	h.metrics.KVOps.WithLabelValues("put").Inc()

	// Enqueue to the async replicator concurrently with the
	// synchronous quorum fan-out below — Enqueue is a non-blocking
	// try-send, so this costs nothing and lets lagging peers start
	// catching up immediately rather than waiting on quorum first.
	h.replicator.Enqueue(e)

	err := quorum.WriteQuorum(c.Request.Context(), h.httpClient, e, h.view.Peers(), h.view.WriteQuorum())
	if err != nil {
		h.metrics.Errors.WithLabelValues("quorum").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, valueBody{Data: &value, Ts: ts, NodeID: origin})
}

// Get handles GET /key/:key. The leader performs a quorum read across
// peers; a follower answers from its own local state.
func (h *Handler) Get(c *gin.Context) {
	key := c.Param("key")
	local, ok := h.store.GetRaw(key)

	if !h.view.IsLeader() {
		if !ok {
			local = store.Value{Data: nil, Ts: 0, Origin: h.view.NodeID()}
		}
		h.respondValue(c, local)
		return
	}

	winner, err := quorum.ReadQuorum(c.Request.Context(), h.httpClient, key, local, ok, h.view.NodeID(), h.view.Peers(), h.view.ReadQuorum())
	if err != nil {
		h.metrics.Errors.WithLabelValues("quorum").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.respondValue(c, winner)
}

// Delete handles DELETE /key/:key.
func (h *Handler) Delete(c *gin.Context) {
	key := c.Param("key")
	if !h.view.IsLeader() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not leader"})
		return
	}

	ts := h.clock.TickSend()
	origin := h.view.NodeID()

	e := entry.Delete(ts, origin, key)

	if err := h.wal.AppendSync(e); err != nil {
		h.metrics.Errors.WithLabelValues("durability").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	_, existed := h.store.Delete(key, ts, origin)
	h.metrics.KVOps.WithLabelValues("delete").Inc()

	h.replicator.Enqueue(e)

	err := quorum.WriteQuorum(c.Request.Context(), h.httpClient, e, h.view.Peers(), h.view.WriteQuorum())
	if err != nil {
		h.metrics.Errors.WithLabelValues("quorum").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if !existed {
		c.Status(http.StatusNotFound)
		return
	}
	c.Status(http.StatusOK)
}

// Replicate handles POST /replicate: the follower (and leader, for
// peer-originated batches) apply path.
func (h *Handler) Replicate(c *gin.Context) {
	var body struct {
		Entries []entry.LogEntry `json:"entries"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.metrics.Errors.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := apply.Batch(h.wal, h.store, h.clock, h.metrics, body.Entries); err != nil {
		h.metrics.Errors.WithLabelValues("replication_apply").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

// Ping handles GET /ping.
func (h *Handler) Ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

// Health handles GET /health: the node's identity plus its view of
// peer liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"node_id":   h.view.NodeID(),
		"leader_id": h.view.LeaderID(),
		"liveness":  h.view.Liveness(),
	})
}
