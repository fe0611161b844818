// Package results holds the tabular record model for test outcomes, the flat
// CSV files they are appended to, and the aggregation into region matrices.
package results

import (
	"encoding/json"
	"os"
	"time"
)

type Kind string

const (
	KindLatency Kind = "latency"
	KindP2P     Kind = "p2p"
	KindUDP     Kind = "udp"
)

// Result is one test outcome between a source and a destination instance.
// Fields that do not apply to a protocol are zero, e.g. jitter for TCP.
type Result struct {
	Kind         Kind      `json:"kind"`
	Protocol     string    `json:"protocol"` // ICMP, TCP or UDP
	SourceRegion string    `json:"source_region"`
	SourceIP     string    `json:"source_ip"`
	DestRegion   string    `json:"dest_region"`
	DestIP       string    `json:"dest_ip"`
	Timestamp    time.Time `json:"timestamp"`

	BandwidthMbps float64 `json:"bandwidth_mbps,omitempty"`
	TransferMB    float64 `json:"transfer_mb,omitempty"`
	DurationSec   float64 `json:"duration_sec,omitempty"`
	Retransmits   int     `json:"retransmits,omitempty"`
	Streams       int     `json:"streams,omitempty"`

	JitterMs    float64 `json:"jitter_ms,omitempty"`
	Packets     int     `json:"packets,omitempty"`
	LostPackets int     `json:"lost_packets,omitempty"`
	LostPct     float64 `json:"lost_pct,omitempty"`

	PacketsTransmitted int     `json:"packets_transmitted,omitempty"`
	PacketsReceived    int     `json:"packets_received,omitempty"`
	MinLatencyMs       float64 `json:"min_latency_ms,omitempty"`
	AvgLatencyMs       float64 `json:"avg_latency_ms,omitempty"`
	MaxLatencyMs       float64 `json:"max_latency_ms,omitempty"`
	MdevMs             float64 `json:"mdev_ms,omitempty"`

	RawFile string `json:"raw_file,omitempty"`
	Error   string `json:"error,omitempty"` // non-empty iff the test failed
}

// OK reports whether the test produced usable measurements.
func (r *Result) OK() bool {
	return r.Error == ""
}

// SaveSidecar writes the record as a JSON sidecar next to its raw output so
// collection never has to reconstruct regions from file names.
func (r *Result) SaveSidecar(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
