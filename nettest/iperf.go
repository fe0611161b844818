package nettest

import (
	"encoding/json"
	"fmt"
)

// The subset of iperf3 -J output the drivers read.
type iperfOutput struct {
	Error string   `json:"error"`
	End   iperfEnd `json:"end"`
}

type iperfEnd struct {
	SumSent     *iperfSum `json:"sum_sent"`
	SumReceived *iperfSum `json:"sum_received"`
	Sum         *iperfSum `json:"sum"`
}

type iperfSum struct {
	BitsPerSecond float64 `json:"bits_per_second"`
	Bytes         float64 `json:"bytes"`
	Seconds       float64 `json:"seconds"`
	Retransmits   int     `json:"retransmits"`
	JitterMs      float64 `json:"jitter_ms"`
	Packets       int     `json:"packets"`
	LostPackets   int     `json:"lost_packets"`
	LostPercent   float64 `json:"lost_percent"`
}

func parseIperfOutput(out []byte) (*iperfOutput, error) {
	parsed := &iperfOutput{}
	if err := json.Unmarshal(out, parsed); err != nil {
		return nil, fmt.Errorf("decoding iperf3 JSON output: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("iperf3: %s", parsed.Error)
	}
	return parsed, nil
}
