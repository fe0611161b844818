package nettest

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alitto/pond"
	"github.com/hanksong/awsbenchmark/inventory"
	"github.com/hanksong/awsbenchmark/provision"
	"github.com/hanksong/awsbenchmark/results"
	"github.com/hanksong/awsbenchmark/sysmon"
	"github.com/hanksong/awsbenchmark/target"
	"github.com/hanksong/awsbenchmark/util"
	"github.com/schollz/progressbar/v3"
)

type RunnerInput struct {
	// Builds the target used to reach an instance over SSH.
	Targets func(in inventory.Instance) target.Target

	// Directory raw outputs and result sidecars are written to.
	DataDir string

	// Maximum simultaneous tests. 0 means run every pair at once.
	Concurrency int

	// Dial destinations on their private addresses.
	UsePrivateIP bool

	// Sample CPU and network counters on the source while throughput
	// tests run.
	Monitor bool
}

// Runner executes a test driver over a set of instance pairs, persisting one
// raw output file and one result sidecar per pair.
type Runner struct {
	input *RunnerInput
}

func NewRunner(input *RunnerInput) (*Runner, error) {
	if input.Targets == nil {
		return nil, fmt.Errorf("a target factory is required")
	}
	if input.DataDir == "" {
		return nil, fmt.Errorf("a data directory is required")
	}
	if err := os.MkdirAll(input.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &Runner{input: input}, nil
}

// RunPairs runs the test once per pair. Failed tests become records with the
// Error field set rather than aborting the run. Results are returned in pair
// order regardless of completion order.
func (r *Runner) RunPairs(test NetTest, pairs []inventory.Pair) []results.Result {
	if test.NeedsServer() {
		r.startServers(uniqueDests(pairs))
	}

	out := make([]results.Result, len(pairs))
	p := progressbar.Default(int64(len(pairs)), fmt.Sprintf("%s tests:", test.Kind()))
	if r.input.Concurrency == 0 {
		wg := sync.WaitGroup{}
		for i, pair := range pairs {
			i, pair := i, pair
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer p.Add(1)
				out[i] = r.runPair(test, pair)
			}()
		}
		wg.Wait()
	} else {
		pool := pond.New(r.input.Concurrency, 0, pond.MinWorkers(r.input.Concurrency))
		for i, pair := range pairs {
			i, pair := i, pair
			pool.Submit(func() {
				defer p.Add(1)
				out[i] = r.runPair(test, pair)
			})
		}
		pool.StopAndWait()
	}
	return out
}

// RunFanOut runs the test from every client against a single server instance.
// Clients run one after another so they never share the server's bandwidth,
// otherwise per-client numbers would be meaningless.
func (r *Runner) RunFanOut(test NetTest, server inventory.Instance, clients []inventory.Instance) []results.Result {
	if test.NeedsServer() {
		r.startServers([]inventory.Instance{server})
	}

	out := make([]results.Result, 0, len(clients))
	p := progressbar.Default(int64(len(clients)), fmt.Sprintf("%s tests:", test.Kind()))
	for _, client := range clients {
		out = append(out, r.runPair(test, inventory.Pair{Source: client, Dest: server}))
		p.Add(1)
	}
	return out
}

func (r *Runner) runPair(test NetTest, pair inventory.Pair) results.Result {
	start := time.Now()
	base := fmt.Sprintf("%s_%s_to_%s_%s", test.Kind(), pair.Source.Label(), pair.Dest.Label(), util.FileTimestamp(start))
	tgt := r.input.Targets(pair.Source)

	var mon *sysmon.Monitor
	if r.input.Monitor && test.NeedsServer() {
		var err error
		mon, err = sysmon.Start(tgt, 2*time.Second)
		if err != nil {
			slog.Warn("system monitoring unavailable for this test", slog.String("source", pair.Source.Label()), slog.String("error", err.Error()))
			mon = nil
		}
	}

	cmd := test.Command(pair.Dest.Addr(r.input.UsePrivateIP))
	buf, runErr := tgt.RunCommand(cmd)

	if mon != nil {
		samples := mon.Stop()
		if err := sysmon.Save(filepath.Join(r.input.DataDir, base+"_sysmon.json"), samples); err != nil {
			slog.Warn("failed to save system monitor samples", slog.String("error", err.Error()))
		}
	}

	rawName := base + rawExt(test)
	if err := os.WriteFile(filepath.Join(r.input.DataDir, rawName), buf, 0o644); err != nil {
		slog.Warn("failed to save raw test output", slog.String("file", rawName), slog.String("error", err.Error()))
	}

	res := &results.Result{}
	if runErr != nil {
		res.Error = fmt.Sprintf("running test command: %v: %s", runErr, util.LastNonEmptyLine(buf))
	} else if parsed, err := test.Parse(buf); err != nil {
		res.Error = fmt.Sprintf("parsing test output: %v", err)
	} else {
		res = parsed
	}

	res.Kind = test.Kind()
	res.SourceRegion = pair.Source.Region
	res.SourceIP = pair.Source.Addr(r.input.UsePrivateIP)
	res.DestRegion = pair.Dest.Region
	res.DestIP = pair.Dest.Addr(r.input.UsePrivateIP)
	res.Timestamp = start
	res.RawFile = rawName

	if err := res.SaveSidecar(filepath.Join(r.input.DataDir, base+results.SidecarSuffix)); err != nil {
		slog.Warn("failed to save result sidecar", slog.String("file", base), slog.String("error", err.Error()))
	}
	if !res.OK() {
		slog.Warn("test failed",
			slog.String("kind", string(test.Kind())),
			slog.String("source", pair.Source.Label()),
			slog.String("dest", pair.Dest.Label()),
			slog.String("error", res.Error))
	}
	return *res
}

// startServers makes sure an iperf3 daemon is up on each destination before
// any client runs. Done serially up front so concurrent pairs never race on
// a shared destination.
func (r *Runner) startServers(dests []inventory.Instance) {
	for _, dest := range dests {
		if err := provision.StartServer(r.input.Targets(dest)); err != nil {
			slog.Warn("failed to start iperf3 server, tests against it will fail", slog.String("dest", dest.Label()), slog.String("error", err.Error()))
		}
	}
}

func uniqueDests(pairs []inventory.Pair) []inventory.Instance {
	seen := map[string]bool{}
	dests := []inventory.Instance{}
	for _, pair := range pairs {
		key := pair.Dest.Label()
		if !seen[key] {
			seen[key] = true
			dests = append(dests, pair.Dest)
		}
	}
	return dests
}

func rawExt(test NetTest) string {
	if test.NeedsServer() {
		return ".json"
	}
	return ".txt"
}
