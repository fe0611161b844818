package nettest

import (
	"fmt"

	"github.com/hanksong/awsbenchmark/results"
	"github.com/mitchellh/mapstructure"
)

type P2PTestInput struct {
	DurationSec int
	Parallel    int
}

type p2pTest struct {
	input *P2PTestInput
}

func init() {
	Register("p2p", func(a map[string]any) (NetTest, error) {
		input := &P2PTestInput{}
		err := mapstructure.Decode(a, input)
		if err != nil {
			return nil, fmt.Errorf("can't convert input to P2PTestInput: %w", err)
		}
		return NewP2PTest(input), nil
	})
}

func NewP2PTest(input *P2PTestInput) NetTest {
	if input.DurationSec == 0 {
		input.DurationSec = 10
	}
	if input.Parallel == 0 {
		input.Parallel = 1
	}
	return &p2pTest{input: input}
}

func (t *p2pTest) Command(destAddr string) string {
	return fmt.Sprintf("iperf3 -c %s -t %d -P %d -J", destAddr, t.input.DurationSec, t.input.Parallel)
}

func (t *p2pTest) Parse(out []byte) (*results.Result, error) {
	parsed, err := parseIperfOutput(out)
	if err != nil {
		return nil, err
	}
	if parsed.End.SumReceived == nil || parsed.End.SumSent == nil {
		return nil, fmt.Errorf("iperf3 output is missing end sums")
	}

	return &results.Result{
		Kind:          results.KindP2P,
		Protocol:      "TCP",
		BandwidthMbps: parsed.End.SumReceived.BitsPerSecond / 1e6,
		TransferMB:    parsed.End.SumReceived.Bytes / 1e6,
		DurationSec:   parsed.End.SumReceived.Seconds,
		Retransmits:   parsed.End.SumSent.Retransmits,
		Streams:       t.input.Parallel,
	}, nil
}

func (t *p2pTest) Kind() results.Kind { return results.KindP2P }

func (t *p2pTest) NeedsServer() bool { return true }
