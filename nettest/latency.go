package nettest

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/hanksong/awsbenchmark/results"
	"github.com/mitchellh/mapstructure"
)

type LatencyTestInput struct {
	Count int
}

type latencyTest struct {
	input *LatencyTestInput
}

func init() {
	Register("latency", func(a map[string]any) (NetTest, error) {
		input := &LatencyTestInput{}
		err := mapstructure.Decode(a, input)
		if err != nil {
			return nil, fmt.Errorf("can't convert input to LatencyTestInput: %w", err)
		}
		return NewLatencyTest(input), nil
	})
}

func NewLatencyTest(input *LatencyTestInput) NetTest {
	if input.Count == 0 {
		input.Count = 20
	}
	return &latencyTest{input: input}
}

func (t *latencyTest) Command(destAddr string) string {
	return fmt.Sprintf("ping -c %d -i 0.2 %s", t.input.Count, destAddr)
}

var (
	// "20 packets transmitted, 20 received, 0% packet loss, time 3817ms"
	// Some platforms print fractional loss and "packets received".
	pingPacketsRe = regexp.MustCompile(`(\d+) packets transmitted, (\d+)(?: packets)? received, ([\d.]+)% packet loss`)

	// "rtt min/avg/max/mdev = 0.045/0.051/0.062/0.006 ms"
	pingRTTRe = regexp.MustCompile(`min/avg/max/(?:mdev|stddev) = ([\d.]+)/([\d.]+)/([\d.]+)/([\d.]+) ms`)
)

func (t *latencyTest) Parse(out []byte) (*results.Result, error) {
	res := &results.Result{Kind: results.KindLatency, Protocol: "ICMP"}

	m := pingPacketsRe.FindSubmatch(out)
	if m == nil {
		return nil, fmt.Errorf("did not find packet statistics in ping output")
	}
	res.PacketsTransmitted, _ = strconv.Atoi(string(m[1]))
	res.PacketsReceived, _ = strconv.Atoi(string(m[2]))
	res.LostPct, _ = strconv.ParseFloat(string(m[3]), 64)

	// No rtt line is printed when every packet was lost.
	if m := pingRTTRe.FindSubmatch(out); m != nil {
		res.MinLatencyMs, _ = strconv.ParseFloat(string(m[1]), 64)
		res.AvgLatencyMs, _ = strconv.ParseFloat(string(m[2]), 64)
		res.MaxLatencyMs, _ = strconv.ParseFloat(string(m[3]), 64)
		res.MdevMs, _ = strconv.ParseFloat(string(m[4]), 64)
	} else if res.PacketsReceived > 0 {
		return nil, fmt.Errorf("did not find rtt statistics in ping output")
	}

	return res, nil
}

func (t *latencyTest) Kind() results.Kind { return results.KindLatency }

func (t *latencyTest) NeedsServer() bool { return false }
