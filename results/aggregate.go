package results

import (
	"math"
	"slices"
)

// PairStat is the mean of a metric for one source/destination region pair.
type PairStat struct {
	SourceRegion string  `json:"source_region"`
	DestRegion   string  `json:"dest_region"`
	Mean         float64 `json:"mean"`
	Count        int     `json:"count"`
}

// Summary aggregates a run's successful records.
type Summary struct {
	LatencyCount int `json:"latency_test_count"`
	P2PCount     int `json:"p2p_test_count"`
	UDPCount     int `json:"udp_test_count"`
	FailureCount int `json:"failure_count"`

	P2PMeanBandwidthMbps float64 `json:"p2p_mean_bandwidth_mbps,omitempty"`
	P2PMinBandwidthMbps  float64 `json:"p2p_min_bandwidth_mbps,omitempty"`
	P2PMaxBandwidthMbps  float64 `json:"p2p_max_bandwidth_mbps,omitempty"`

	UDPMeanBandwidthMbps float64 `json:"udp_mean_bandwidth_mbps,omitempty"`
	UDPMeanJitterMs      float64 `json:"udp_mean_jitter_ms,omitempty"`
	UDPMeanLossPct       float64 `json:"udp_mean_loss_pct,omitempty"`

	MeanLatencyMs float64 `json:"mean_latency_ms,omitempty"`

	P2PPairBandwidth []PairStat `json:"p2p_pair_bandwidth,omitempty"`
	UDPPairBandwidth []PairStat `json:"udp_pair_bandwidth,omitempty"`
	LatencyPairAvg   []PairStat `json:"latency_pair_avg,omitempty"`
}

// Summarize computes overall and per-region-pair statistics. Failed records
// are counted but excluded from the statistics.
func Summarize(items []Result) *Summary {
	s := &Summary{}

	var p2pBW, udpBW, udpJitter, udpLoss, latency []float64
	for _, r := range items {
		if !r.OK() {
			s.FailureCount++
			continue
		}
		switch r.Kind {
		case KindLatency:
			s.LatencyCount++
			latency = append(latency, r.AvgLatencyMs)
		case KindP2P:
			s.P2PCount++
			p2pBW = append(p2pBW, r.BandwidthMbps)
		case KindUDP:
			s.UDPCount++
			udpBW = append(udpBW, r.BandwidthMbps)
			udpJitter = append(udpJitter, r.JitterMs)
			udpLoss = append(udpLoss, r.LostPct)
		}
	}

	if len(p2pBW) > 0 {
		s.P2PMeanBandwidthMbps = mean(p2pBW)
		s.P2PMinBandwidthMbps = slices.Min(p2pBW)
		s.P2PMaxBandwidthMbps = slices.Max(p2pBW)
	}
	if len(udpBW) > 0 {
		s.UDPMeanBandwidthMbps = mean(udpBW)
		s.UDPMeanJitterMs = mean(udpJitter)
		s.UDPMeanLossPct = mean(udpLoss)
	}
	if len(latency) > 0 {
		s.MeanLatencyMs = mean(latency)
	}

	s.P2PPairBandwidth = pairStats(items, KindP2P, func(r Result) float64 { return r.BandwidthMbps })
	s.UDPPairBandwidth = pairStats(items, KindUDP, func(r Result) float64 { return r.BandwidthMbps })
	s.LatencyPairAvg = pairStats(items, KindLatency, func(r Result) float64 { return r.AvgLatencyMs })
	return s
}

func pairStats(items []Result, kind Kind, value func(Result) float64) []PairStat {
	type key struct{ src, dst string }
	sums := map[key]float64{}
	counts := map[key]int{}
	order := []key{}
	for _, r := range items {
		if r.Kind != kind || !r.OK() {
			continue
		}
		k := key{r.SourceRegion, r.DestRegion}
		if _, seen := sums[k]; !seen {
			order = append(order, k)
		}
		sums[k] += value(r)
		counts[k]++
	}

	slices.SortFunc(order, func(a, b key) int {
		if a.src != b.src {
			if a.src < b.src {
				return -1
			}
			return 1
		}
		if a.dst < b.dst {
			return -1
		} else if a.dst > b.dst {
			return 1
		}
		return 0
	})

	out := []PairStat{}
	for _, k := range order {
		out = append(out, PairStat{
			SourceRegion: k.src,
			DestRegion:   k.dst,
			Mean:         sums[k] / float64(counts[k]),
			Count:        counts[k],
		})
	}
	return out
}

func mean(vs []float64) float64 {
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

// Matrix is a region-by-region grid of a single metric. Missing cells
// (including the diagonal for inter-region-only runs) are NaN.
type Matrix struct {
	Regions []string
	Cells   map[string]map[string]float64
}

// NewMatrix builds a grid of the mean metric value per region pair for the
// given kind of successful records.
func NewMatrix(items []Result, kind Kind, value func(Result) float64) *Matrix {
	regionSet := map[string]bool{}
	for _, r := range items {
		if r.Kind != kind {
			continue
		}
		regionSet[r.SourceRegion] = true
		regionSet[r.DestRegion] = true
	}
	regions := make([]string, 0, len(regionSet))
	for region := range regionSet {
		regions = append(regions, region)
	}
	slices.Sort(regions)

	m := &Matrix{Regions: regions, Cells: map[string]map[string]float64{}}
	for _, src := range regions {
		m.Cells[src] = map[string]float64{}
		for _, dst := range regions {
			m.Cells[src][dst] = math.NaN()
		}
	}

	for _, stat := range pairStats(items, kind, value) {
		m.Cells[stat.SourceRegion][stat.DestRegion] = stat.Mean
	}
	return m
}

// At returns the cell value, NaN when either region is unknown.
func (m *Matrix) At(src, dst string) float64 {
	row, ok := m.Cells[src]
	if !ok {
		return math.NaN()
	}
	v, ok := row[dst]
	if !ok {
		return math.NaN()
	}
	return v
}
