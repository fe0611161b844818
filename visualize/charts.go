// Package visualize renders a run's records into PNG charts and a single
// self-contained HTML report.
package visualize

import (
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/hanksong/awsbenchmark/results"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var barBlue = color.RGBA{54, 162, 235, 255}

// GenerateCharts renders every chart the collected records support into dir
// and returns the file names written. Record sets with no successful tests
// produce no charts for that kind.
func GenerateCharts(c *results.Collected, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating chart directory: %w", err)
	}

	type chart struct {
		name   string
		render func(path string) error
	}
	charts := []chart{}

	if n := countOK(c.P2P); n > 0 {
		p2pStats := results.Summarize(c.P2P)
		charts = append(charts,
			chart{"p2p_bandwidth_hist.png", func(path string) error {
				return Histogram(values(c.P2P, bandwidth),
					fmt.Sprintf("TCP Bandwidth (mean %.1f Mbps, n=%d)", p2pStats.P2PMeanBandwidthMbps, n),
					"Mbps", path)
			}},
			chart{"p2p_bandwidth_pairs.png", func(path string) error {
				return PairBars(p2pStats.P2PPairBandwidth, "TCP Bandwidth by Region Pair", "Mbps", path)
			}},
			chart{"p2p_bandwidth_matrix.png", func(path string) error {
				return MatrixHeatmap(results.NewMatrix(c.P2P, results.KindP2P, bandwidth),
					"TCP Bandwidth (Mbps)", path)
			}},
		)
	}

	if n := countOK(c.UDP); n > 0 {
		udpStats := results.Summarize(c.UDP)
		charts = append(charts,
			chart{"udp_bandwidth_hist.png", func(path string) error {
				return Histogram(values(c.UDP, bandwidth),
					fmt.Sprintf("UDP Bandwidth (mean %.1f Mbps, n=%d)", udpStats.UDPMeanBandwidthMbps, n),
					"Mbps", path)
			}},
			chart{"udp_jitter_hist.png", func(path string) error {
				return Histogram(values(c.UDP, func(r results.Result) float64 { return r.JitterMs }),
					fmt.Sprintf("UDP Jitter (mean %.3f ms)", udpStats.UDPMeanJitterMs), "ms", path)
			}},
			chart{"udp_loss_matrix.png", func(path string) error {
				return MatrixHeatmap(results.NewMatrix(c.UDP, results.KindUDP,
					func(r results.Result) float64 { return r.LostPct }),
					"UDP Packet Loss (%)", path)
			}},
		)
	}

	if n := countOK(c.Latency); n > 0 {
		latStats := results.Summarize(c.Latency)
		charts = append(charts,
			chart{"latency_hist.png", func(path string) error {
				return Histogram(values(c.Latency, func(r results.Result) float64 { return r.AvgLatencyMs }),
					fmt.Sprintf("Round-Trip Latency (mean %.1f ms, n=%d)", latStats.MeanLatencyMs, n),
					"ms", path)
			}},
			chart{"latency_matrix.png", func(path string) error {
				return MatrixHeatmap(results.NewMatrix(c.Latency, results.KindLatency,
					func(r results.Result) float64 { return r.AvgLatencyMs }),
					"Round-Trip Latency (ms)", path)
			}},
		)
	}

	names := []string{}
	for _, ch := range charts {
		if err := ch.render(filepath.Join(dir, ch.name)); err != nil {
			return names, fmt.Errorf("rendering %s: %w", ch.name, err)
		}
		slog.Debug("rendered chart", slog.String("file", ch.name))
		names = append(names, ch.name)
	}
	return names, nil
}

// Histogram renders the distribution of one metric.
func Histogram(vs []float64, title, unit, path string) error {
	if len(vs) == 0 {
		return fmt.Errorf("no values to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = unit
	p.Y.Label.Text = "Tests"

	bins := 16
	if len(vs) < bins {
		bins = max(len(vs), 2)
	}
	hist, err := plotter.NewHist(plotter.Values(vs), bins)
	if err != nil {
		return err
	}
	hist.FillColor = barBlue
	p.Add(hist)
	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}

// PairBars renders one bar per region pair, labeled source>dest.
func PairBars(stats []results.PairStat, title, unit, path string) error {
	if len(stats) == 0 {
		return fmt.Errorf("no pairs to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = unit

	vals := make(plotter.Values, len(stats))
	ticks := make([]plot.Tick, len(stats))
	for i, st := range stats {
		vals[i] = st.Mean
		ticks[i] = plot.Tick{Value: float64(i), Label: fmt.Sprintf("%s>%s", st.SourceRegion, st.DestRegion)}
	}

	bar, err := plotter.NewBarChart(vals, vg.Points(20))
	if err != nil {
		return err
	}
	bar.Color = barBlue
	p.Add(bar)

	// A fixed x range keeps the bar spacing sane, otherwise gonum centers them.
	p.X.Min = -0.5
	p.X.Max = float64(len(vals)) - 0.5
	p.X.Tick.Marker = plot.ConstantTicks(ticks)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = -1
	p.X.Tick.Label.YAlign = -0.5

	width := vg.Length(len(stats)) * vg.Inch / 2
	if width < 6*vg.Inch {
		width = 6 * vg.Inch
	}
	return p.Save(width, 4*vg.Inch, path)
}

// MatrixHeatmap renders a region-by-region grid. NaN cells stay blank.
func MatrixHeatmap(m *results.Matrix, title, path string) error {
	if len(m.Regions) == 0 {
		return fmt.Errorf("no regions to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Destination"
	p.Y.Label.Text = "Source"

	grid := &matrixGrid{m: m}
	pal := palette.Heat(64, 1)
	hm := plotter.NewHeatMap(grid, pal)
	hm.Min, hm.Max = grid.finiteRange()
	hm.NaN = color.Transparent
	p.Add(hm)

	xTicks := make([]plot.Tick, len(m.Regions))
	yTicks := make([]plot.Tick, len(m.Regions))
	for i, region := range m.Regions {
		xTicks[i] = plot.Tick{Value: float64(i), Label: region}
		// Rows are drawn bottom-up, so the y labels run in reverse.
		yTicks[len(m.Regions)-1-i] = plot.Tick{Value: float64(len(m.Regions) - 1 - i), Label: region}
	}
	p.X.Tick.Marker = plot.ConstantTicks(xTicks)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = -1
	p.X.Tick.Label.YAlign = -0.5
	p.Y.Tick.Marker = plot.ConstantTicks(yTicks)

	return p.Save(7*vg.Inch, 6*vg.Inch, path)
}

// matrixGrid adapts a results.Matrix to gonum's GridXYZ. Row 0 is drawn at
// the bottom, so sources are indexed from the end to read top-down.
type matrixGrid struct {
	m *results.Matrix
}

func (g *matrixGrid) Dims() (int, int) { return len(g.m.Regions), len(g.m.Regions) }
func (g *matrixGrid) X(c int) float64  { return float64(c) }
func (g *matrixGrid) Y(r int) float64  { return float64(r) }

func (g *matrixGrid) Z(c, r int) float64 {
	src := g.m.Regions[len(g.m.Regions)-1-r]
	dst := g.m.Regions[c]
	return g.m.At(src, dst)
}

func (g *matrixGrid) finiteRange() (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, row := range g.m.Cells {
		for _, v := range row {
			if math.IsNaN(v) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if lo > hi {
		return 0, 1
	}
	if lo == hi {
		// gonum requires min < max
		hi = lo + 1
	}
	return lo, hi
}

func countOK(items []results.Result) int {
	n := 0
	for _, r := range items {
		if r.OK() {
			n++
		}
	}
	return n
}

func values(items []results.Result, f func(results.Result) float64) []float64 {
	vs := []float64{}
	for _, r := range items {
		if r.OK() {
			vs = append(vs, f(r))
		}
	}
	return vs
}

func bandwidth(r results.Result) float64 { return r.BandwidthMbps }
