// Package config loads a node's startup configuration from CLI flags,
// falling back to environment variables for anything not passed on
// the command line.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Config is everything a node needs to boot: its identity, its
// listen address, the current leader, its peer set, and the WAL
// location.
type Config struct {
	NodeID     uint64
	Addr       string
	LeaderID   uint64
	Peers      []string // peer base URLs, e.g. "http://host:port"
	WALPath    string
	ChaosDelay time.Duration
}

// Load reads Config fields out of fs — a flag set already parsed by
// the caller (e.g. a cobra command's Flags(), post-Execute) — then
// fills in anything left at its zero value from the environment. It
// never parses args itself, so callers that parse flags via cobra
// don't end up parsing the command line twice.
func Load(fs *pflag.FlagSet) (Config, error) {
	nodeID, err := fs.GetUint64("node-id")
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	addr, err := fs.GetString("addr")
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	leaderID, err := fs.GetUint64("leader-id")
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	peers, err := fs.GetStringSlice("peers")
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	walPath, err := fs.GetString("wal-path")
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	chaosMs, err := fs.GetInt64("chaos-before-sync-ms")
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	cfg := Config{
		NodeID:   nodeID,
		Addr:     addr,
		LeaderID: leaderID,
		Peers:    peers,
		WALPath:  walPath,
	}
	if chaosMs >= 0 {
		cfg.ChaosDelay = time.Duration(chaosMs) * time.Millisecond
	}

	applyEnvFallback(&cfg)

	if cfg.NodeID == 0 {
		return Config{}, fmt.Errorf("config: node id is required (--node-id or NODE_ID)")
	}
	if cfg.Addr == "" {
		return Config{}, fmt.Errorf("config: listen address is required (--addr or LISTEN_ADDR)")
	}
	if cfg.LeaderID == 0 {
		cfg.LeaderID = cfg.NodeID
	}
	if cfg.WALPath == "" {
		cfg.WALPath = "wal.log"
	}

	return cfg, nil
}

func applyEnvFallback(cfg *Config) {
	if cfg.NodeID == 0 {
		if v, ok := os.LookupEnv("NODE_ID"); ok {
			if n, err := strconv.ParseUint(v, 10, 64); err == nil {
				cfg.NodeID = n
			}
		}
	}
	if cfg.Addr == "" {
		if v, ok := os.LookupEnv("LISTEN_ADDR"); ok {
			cfg.Addr = v
		}
	}
	if cfg.LeaderID == 0 {
		if v, ok := os.LookupEnv("LEADER_ID"); ok {
			if n, err := strconv.ParseUint(v, 10, 64); err == nil {
				cfg.LeaderID = n
			}
		}
	}
	if len(cfg.Peers) == 0 {
		if v, ok := os.LookupEnv("PEERS"); ok && v != "" {
			cfg.Peers = strings.Split(v, ",")
		}
	}
	if cfg.WALPath == "" {
		if v, ok := os.LookupEnv("WAL_PATH"); ok {
			cfg.WALPath = v
		}
	}
	if cfg.ChaosDelay == 0 {
		if v, ok := os.LookupEnv("CHAOS_BEFORE_SYNC_MS"); ok {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				cfg.ChaosDelay = time.Duration(n) * time.Millisecond
			}
		}
	}
}
