package nettest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hanksong/awsbenchmark/inventory"
	"github.com/hanksong/awsbenchmark/results"
	"github.com/hanksong/awsbenchmark/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// fakeTarget replays canned command output instead of dialing SSH.
type fakeTarget struct {
	output []byte
	err    error
	cmds   []string
}

func (t *fakeTarget) RunCommand(cmd string) ([]byte, error) {
	t.cmds = append(t.cmds, cmd)
	return t.output, t.err
}

func (t *fakeTarget) CopyFileTo(localFile io.Reader, remotePath string) error { return nil }

func (t *fakeTarget) CopyFileFrom(remotePath string, localFile io.Writer) error { return nil }

func (t *fakeTarget) Client() (*ssh.Client, error) { return nil, fmt.Errorf("no client in tests") }

func testPairs() []inventory.Pair {
	src := inventory.Instance{Region: "us-east-1", PublicIP: "1.1.1.1", PrivateIP: "10.0.1.1"}
	dst := inventory.Instance{Region: "eu-west-1", PublicIP: "2.2.2.2", PrivateIP: "10.1.1.1"}
	return []inventory.Pair{{Source: src, Dest: dst}, {Source: dst, Dest: src}}
}

func TestRunPairs(t *testing.T) {
	dir := t.TempDir()
	fake := &fakeTarget{output: []byte(pingOutput)}
	runner, err := NewRunner(&RunnerInput{
		Targets:     func(in inventory.Instance) target.Target { return fake },
		DataDir:     dir,
		Concurrency: 1,
	})
	require.NoError(t, err)

	out := runner.RunPairs(NewLatencyTest(&LatencyTestInput{Count: 4}), testPairs())
	require.Len(t, out, 2)

	assert.Equal(t, "us-east-1", out[0].SourceRegion)
	assert.Equal(t, "eu-west-1", out[0].DestRegion)
	assert.Equal(t, "1.1.1.1", out[0].SourceIP)
	assert.Equal(t, "2.2.2.2", out[0].DestIP)
	assert.True(t, out[0].OK())
	assert.Equal(t, 72.015, out[0].AvgLatencyMs)
	assert.False(t, out[0].Timestamp.IsZero())

	// The reverse pair keeps its own identity.
	assert.Equal(t, "eu-west-1", out[1].SourceRegion)
	assert.Equal(t, "us-east-1", out[1].DestRegion)

	// One raw file and one sidecar per pair.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	raws, sidecars := 0, 0
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), results.SidecarSuffix) {
			sidecars++
		} else if strings.HasSuffix(e.Name(), ".txt") {
			raws++
		}
	}
	assert.Equal(t, 2, raws)
	assert.Equal(t, 2, sidecars)
}

func TestRunPairsUsesPrivateIPs(t *testing.T) {
	fake := &fakeTarget{output: []byte(pingOutput)}
	runner, err := NewRunner(&RunnerInput{
		Targets:      func(in inventory.Instance) target.Target { return fake },
		DataDir:      t.TempDir(),
		Concurrency:  1,
		UsePrivateIP: true,
	})
	require.NoError(t, err)

	out := runner.RunPairs(NewLatencyTest(&LatencyTestInput{Count: 4}), testPairs()[:1])
	require.Len(t, out, 1)
	assert.Equal(t, "10.0.1.1", out[0].SourceIP)
	assert.Equal(t, "10.1.1.1", out[0].DestIP)
	assert.Contains(t, fake.cmds[0], "10.1.1.1")
}

func TestRunPairsRecordsFailures(t *testing.T) {
	dir := t.TempDir()
	fake := &fakeTarget{output: []byte("ssh: connect to host timed out"), err: fmt.Errorf("exit status 255")}
	runner, err := NewRunner(&RunnerInput{
		Targets:     func(in inventory.Instance) target.Target { return fake },
		DataDir:     dir,
		Concurrency: 1,
	})
	require.NoError(t, err)

	out := runner.RunPairs(NewLatencyTest(&LatencyTestInput{}), testPairs())
	require.Len(t, out, 2)
	for _, r := range out {
		assert.False(t, r.OK())
		assert.Contains(t, r.Error, "exit status 255")
		// Identity fields survive the failure.
		assert.NotEmpty(t, r.SourceRegion)
		assert.NotEmpty(t, r.DestRegion)
	}
}

func TestRunPairsRecordsFailureWithoutOutput(t *testing.T) {
	// A dial failure yields an error with no command output at all.
	fake := &fakeTarget{output: nil, err: fmt.Errorf("dial tcp 10.0.1.10:22: i/o timeout")}
	runner, err := NewRunner(&RunnerInput{
		Targets:     func(in inventory.Instance) target.Target { return fake },
		DataDir:     t.TempDir(),
		Concurrency: 1,
	})
	require.NoError(t, err)

	out := runner.RunPairs(NewLatencyTest(&LatencyTestInput{}), testPairs())
	require.Len(t, out, 2)
	for _, r := range out {
		assert.False(t, r.OK())
		assert.Contains(t, r.Error, "i/o timeout")
	}
}

func TestRunPairsStartsServersOnce(t *testing.T) {
	fake := &fakeTarget{output: []byte(iperfTCPOutput)}
	runner, err := NewRunner(&RunnerInput{
		Targets:     func(in inventory.Instance) target.Target { return fake },
		DataDir:     t.TempDir(),
		Concurrency: 1,
	})
	require.NoError(t, err)

	pairs := testPairs()[:1]
	runner.RunPairs(NewP2PTest(&P2PTestInput{}), pairs)

	serverStarts := 0
	for _, cmd := range fake.cmds {
		if cmd == "iperf3 -s -D" {
			serverStarts++
		}
	}
	assert.Equal(t, 1, serverStarts)
}

func TestRunFanOut(t *testing.T) {
	dir := t.TempDir()
	fake := &fakeTarget{output: []byte(iperfUDPOutput)}
	runner, err := NewRunner(&RunnerInput{
		Targets:     func(in inventory.Instance) target.Target { return fake },
		DataDir:     dir,
		Concurrency: 1,
	})
	require.NoError(t, err)

	server := inventory.Instance{Region: "us-east-1", PublicIP: "1.1.1.1"}
	clients := []inventory.Instance{
		{Region: "eu-west-1", PublicIP: "2.2.2.2"},
		{Region: "ap-northeast-1", PublicIP: "3.3.3.3"},
	}
	out := runner.RunFanOut(NewUDPTest(&UDPTestInput{}), server, clients)
	require.Len(t, out, 2)
	for i, r := range out {
		assert.Equal(t, clients[i].Region, r.SourceRegion)
		assert.Equal(t, "us-east-1", r.DestRegion)
		assert.True(t, r.OK())
	}

	// Raw iperf output keeps its JSON extension.
	matches, err := filepath.Glob(filepath.Join(dir, "udp_*_to_*.json"))
	require.NoError(t, err)
	raws := 0
	for _, m := range matches {
		if !strings.HasSuffix(m, results.SidecarSuffix) {
			raws++
		}
	}
	assert.Equal(t, 2, raws)
}

func TestNewRunnerValidation(t *testing.T) {
	_, err := NewRunner(&RunnerInput{DataDir: t.TempDir()})
	assert.Error(t, err)

	_, err = NewRunner(&RunnerInput{Targets: func(in inventory.Instance) target.Target { return nil }})
	assert.Error(t, err)
}
