package nettest

import (
	"fmt"

	"github.com/hanksong/awsbenchmark/results"
	"github.com/mitchellh/mapstructure"
)

type UDPTestInput struct {
	Bandwidth   string
	DurationSec int
}

type udpTest struct {
	input *UDPTestInput
}

func init() {
	Register("udp", func(a map[string]any) (NetTest, error) {
		input := &UDPTestInput{}
		err := mapstructure.Decode(a, input)
		if err != nil {
			return nil, fmt.Errorf("can't convert input to UDPTestInput: %w", err)
		}
		return NewUDPTest(input), nil
	})
}

func NewUDPTest(input *UDPTestInput) NetTest {
	if input.Bandwidth == "" {
		input.Bandwidth = "1G"
	}
	if input.DurationSec == 0 {
		input.DurationSec = 10
	}
	return &udpTest{input: input}
}

func (t *udpTest) Command(destAddr string) string {
	return fmt.Sprintf("iperf3 -c %s -u -b %s -t %d -J", destAddr, t.input.Bandwidth, t.input.DurationSec)
}

func (t *udpTest) Parse(out []byte) (*results.Result, error) {
	parsed, err := parseIperfOutput(out)
	if err != nil {
		return nil, err
	}
	if parsed.End.Sum == nil {
		return nil, fmt.Errorf("iperf3 output is missing end sum")
	}

	sum := parsed.End.Sum
	return &results.Result{
		Kind:          results.KindUDP,
		Protocol:      "UDP",
		BandwidthMbps: sum.BitsPerSecond / 1e6,
		TransferMB:    sum.Bytes / 1e6,
		DurationSec:   sum.Seconds,
		JitterMs:      sum.JitterMs,
		Packets:       sum.Packets,
		LostPackets:   sum.LostPackets,
		LostPct:       sum.LostPercent,
	}, nil
}

func (t *udpTest) Kind() results.Kind { return results.KindUDP }

func (t *udpTest) NeedsServer() bool { return true }
