// Package nettest holds the test drivers that turn a source/destination pair
// into a remote command and parse the tool output into a result record.
package nettest

import (
	"fmt"

	"github.com/hanksong/awsbenchmark/results"
)

// A NetTest drives one kind of measurement between two instances. The runner
// executes Command on the source instance and hands the combined output back
// to Parse; identity fields (regions, IPs, timestamp) are stamped by the
// runner, so Parse fills in metrics only.
type NetTest interface {
	// The remote command to run on the source instance against destAddr.
	Command(destAddr string) string

	// Parse the entire output from running the command.
	Parse(out []byte) (*results.Result, error)

	// The result kind this driver produces.
	Kind() results.Kind

	// Whether the destination must be running an iperf3 server daemon.
	NeedsServer() bool
}

type testType string

type testFactory func(map[string]any) (NetTest, error)

var drivers map[testType]testFactory

// All drivers must register themselves at package load time so that
// deserialization can create a driver of that type.
func Register(ttype string, f testFactory) {
	if drivers == nil {
		drivers = map[testType]testFactory{}
	}
	drivers[testType(ttype)] = f
}

// Spec selects a driver type and its options, as found in a config file.
type Spec struct {
	Type  string
	Input map[string]any
}

func New(spec *Spec) (NetTest, error) {
	f, ok := drivers[testType(spec.Type)]
	if !ok {
		return nil, fmt.Errorf("unknown test type: %s", spec.Type)
	}
	return f(spec.Input)
}
