package sysmon

import (
	"strconv"
	"strings"
)

type cpuTimeStat struct {
	user    int
	nice    int
	system  int
	idle    int
	iowait  int
	irq     int
	softIrq int
	steal   int
}

func (ts *cpuTimeStat) total() int {
	return ts.user + ts.nice + ts.system + ts.idle + ts.iowait + ts.irq + ts.softIrq + ts.steal
}

func parseCPUTimeStat(buf []byte) *cpuTimeStat {
	for _, line := range strings.Split(string(buf), "\n") {
		// Only the aggregate line, not the per-core ones.
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 9 {
			return nil
		}
		user, _ := strconv.Atoi(parts[1])
		nice, _ := strconv.Atoi(parts[2])
		system, _ := strconv.Atoi(parts[3])
		idle, _ := strconv.Atoi(parts[4])
		iowait, _ := strconv.Atoi(parts[5])
		irq, _ := strconv.Atoi(parts[6])
		softIrq, _ := strconv.Atoi(parts[7])
		steal, _ := strconv.Atoi(parts[8])
		return &cpuTimeStat{
			user:    user,
			nice:    nice,
			system:  system,
			idle:    idle,
			iowait:  iowait,
			irq:     irq,
			softIrq: softIrq,
			steal:   steal,
		}
	}
	return nil
}

func setCPUPercentages(sample *Sample, curr, prev *cpuTimeStat) {
	delta := float64(curr.total() - prev.total())
	if delta <= 0 {
		return
	}
	sample.CPUUserPct = float64(100*(curr.user-prev.user)) / delta
	sample.CPUSystemPct = float64(100*(curr.system-prev.system)) / delta
	sample.CPUIdlePct = float64(100*(curr.idle-prev.idle)) / delta
	sample.CPUIowaitPct = float64(100*(curr.iowait-prev.iowait)) / delta
	sample.CPUStealPct = float64(100*(curr.steal-prev.steal)) / delta
}

func parseNetDev(buf []byte) []InterfaceSample {
	out := []InterfaceSample{}
	for _, line := range strings.Split(string(buf), "\n") {
		parts := strings.Fields(line)
		if len(parts) != 17 {
			continue
		}
		iface := strings.TrimSuffix(parts[0], ":")
		recvBytes, _ := strconv.Atoi(parts[1])
		recvPackets, _ := strconv.Atoi(parts[2])
		sentBytes, _ := strconv.Atoi(parts[9])
		sentPackets, _ := strconv.Atoi(parts[10])
		out = append(out, InterfaceSample{
			Name:        iface,
			RecvBytes:   recvBytes,
			RecvPackets: recvPackets,
			SentBytes:   sentBytes,
			SentPackets: sentPackets,
		})
	}
	return out
}
