// Package sysmon samples CPU and network interface counters on a remote
// instance over a persistent SSH connection while a throughput test runs.
package sysmon

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hanksong/awsbenchmark/target"
	"golang.org/x/crypto/ssh"
)

// Sample is one snapshot of the monitored instance. CPU percentages are
// computed from /proc/stat deltas between consecutive snapshots, so the
// first snapshot of a run carries interface counters only.
type Sample struct {
	Time time.Time `json:"time"`

	CPUUserPct   float64 `json:"cpu_user_pct"`
	CPUSystemPct float64 `json:"cpu_system_pct"`
	CPUIdlePct   float64 `json:"cpu_idle_pct"`
	CPUIowaitPct float64 `json:"cpu_iowait_pct"`
	CPUStealPct  float64 `json:"cpu_steal_pct"`

	Interfaces []InterfaceSample `json:"interfaces"`
}

// InterfaceSample holds the cumulative /proc/net/dev counters of one
// interface at sample time.
type InterfaceSample struct {
	Name        string `json:"name"`
	RecvBytes   int    `json:"recv_bytes"`
	RecvPackets int    `json:"recv_packets"`
	SentBytes   int    `json:"sent_bytes"`
	SentPackets int    `json:"sent_packets"`
}

type Monitor struct {
	client   *ssh.Client
	interval time.Duration
	stop     *atomic.Bool
	wg       *sync.WaitGroup

	mu      sync.Mutex
	samples []Sample
}

// Start opens a dedicated SSH connection to the instance and begins sampling
// at the given interval until Stop is called.
func Start(t target.Target, interval time.Duration) (*Monitor, error) {
	client, err := t.Client()
	if err != nil {
		return nil, err
	}
	mon := &Monitor{
		client:   client,
		interval: interval,
		stop:     &atomic.Bool{},
		wg:       &sync.WaitGroup{},
	}
	mon.wg.Add(1)
	go mon.run()
	return mon, nil
}

// Stop ends sampling, closes the connection, and returns the collected
// samples in time order.
func (mon *Monitor) Stop() []Sample {
	mon.stop.Store(true)
	mon.wg.Wait()
	mon.client.Close()

	mon.mu.Lock()
	defer mon.mu.Unlock()
	return mon.samples
}

// Save writes samples as JSON next to the test's raw output.
func Save(path string, samples []Sample) error {
	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (mon *Monitor) run() {
	defer mon.wg.Done()
	var prevCPU *cpuTimeStat
	for !mon.stop.Load() {
		now := time.Now()
		sample := Sample{Time: now}

		currCPU := parseCPUTimeStat(mon.runCommand("cat /proc/stat"))
		if prevCPU != nil && currCPU != nil {
			setCPUPercentages(&sample, currCPU, prevCPU)
		}
		prevCPU = currCPU

		sample.Interfaces = parseNetDev(mon.runCommand("cat /proc/net/dev"))

		mon.mu.Lock()
		mon.samples = append(mon.samples, sample)
		mon.mu.Unlock()

		time.Sleep(mon.interval)
	}
}

func (mon *Monitor) runCommand(cmd string) []byte {
	session, err := mon.client.NewSession()
	if err == io.EOF {
		slog.Warn("sysmon: connection is dead, stopping monitor", slog.String("error", err.Error()))
		mon.stop.Store(true)
		return nil
	} else if err != nil {
		slog.Warn("sysmon: failed to create session", slog.String("error", err.Error()))
		return nil
	}
	defer session.Close()

	buf, err := session.CombinedOutput(cmd)
	if err != nil {
		slog.Warn("sysmon: failed to run command", slog.String("command", cmd), slog.String("output", string(buf)))
		return nil
	}
	return buf
}
