package results

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SidecarSuffix names the parsed-record files written next to raw tool output.
const SidecarSuffix = ".result.json"

// Collected is the combined output of a collection pass over a run directory.
type Collected struct {
	Timestamp time.Time `json:"timestamp"`
	Latency   []Result  `json:"latency_tests"`
	P2P       []Result  `json:"point_to_point_tests"`
	UDP       []Result  `json:"udp_fanout_tests"`
}

// All returns every collected record in one slice.
func (c *Collected) All() []Result {
	out := make([]Result, 0, len(c.Latency)+len(c.P2P)+len(c.UDP))
	out = append(out, c.Latency...)
	out = append(out, c.P2P...)
	out = append(out, c.UDP...)
	return out
}

// Collect walks dir for record sidecars, groups them by kind, and writes the
// combined collected_results.json. Unreadable sidecars are logged and skipped
// so one corrupt file cannot hide an entire run.
func Collect(dir string) (*Collected, error) {
	collected := &Collected{
		Timestamp: time.Now(),
		Latency:   []Result{},
		P2P:       []Result{},
		UDP:       []Result{},
	}

	paths := []string{}
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, SidecarSuffix) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("failed to read result sidecar, skipping", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		var r Result
		if err := json.Unmarshal(data, &r); err != nil {
			slog.Warn("failed to parse result sidecar, skipping", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		switch r.Kind {
		case KindLatency:
			collected.Latency = append(collected.Latency, r)
		case KindP2P:
			collected.P2P = append(collected.P2P, r)
		case KindUDP:
			collected.UDP = append(collected.UDP, r)
		default:
			slog.Warn("result sidecar has unknown kind, skipping", slog.String("path", path), slog.String("kind", string(r.Kind)))
		}
	}

	out := filepath.Join(dir, "collected_results.json")
	data, err := json.MarshalIndent(collected, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return nil, err
	}
	slog.Info("collected results",
		slog.Int("latency", len(collected.Latency)),
		slog.Int("p2p", len(collected.P2P)),
		slog.Int("udp", len(collected.UDP)),
		slog.String("file", out),
	)
	return collected, nil
}
