package visualize

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hanksong/awsbenchmark/results"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCollected() *results.Collected {
	return &results.Collected{
		Timestamp: time.Now(),
		Latency: []results.Result{
			{Kind: results.KindLatency, SourceRegion: "us-east-1", DestRegion: "eu-west-1", AvgLatencyMs: 70, MinLatencyMs: 69, MaxLatencyMs: 72},
			{Kind: results.KindLatency, SourceRegion: "eu-west-1", DestRegion: "us-east-1", AvgLatencyMs: 74, MinLatencyMs: 73, MaxLatencyMs: 75},
		},
		P2P: []results.Result{
			{Kind: results.KindP2P, SourceRegion: "us-east-1", DestRegion: "eu-west-1", BandwidthMbps: 100},
			{Kind: results.KindP2P, SourceRegion: "eu-west-1", DestRegion: "us-east-1", BandwidthMbps: 90},
			{Kind: results.KindP2P, SourceRegion: "us-east-1", DestRegion: "eu-west-1", Error: "boom"},
		},
		UDP: []results.Result{
			{Kind: results.KindUDP, SourceRegion: "eu-west-1", DestRegion: "us-east-1", BandwidthMbps: 800, JitterMs: 0.2, LostPct: 1.5},
		},
	}
}

func TestGenerateCharts(t *testing.T) {
	dir := t.TempDir()
	names, err := GenerateCharts(testCollected(), dir)
	require.NoError(t, err)
	assert.Contains(t, names, "p2p_bandwidth_hist.png")
	assert.Contains(t, names, "p2p_bandwidth_matrix.png")
	assert.Contains(t, names, "udp_jitter_hist.png")
	assert.Contains(t, names, "latency_matrix.png")

	for _, name := range names {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Greater(t, info.Size(), int64(0), name)
	}
}

func TestGenerateChartsSkipsEmptyKinds(t *testing.T) {
	c := testCollected()
	c.UDP = nil
	names, err := GenerateCharts(c, t.TempDir())
	require.NoError(t, err)
	for _, name := range names {
		assert.NotContains(t, name, "udp")
	}
}

func TestGenerateChartsNothingToPlot(t *testing.T) {
	names, err := GenerateCharts(&results.Collected{}, t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestHistogramNoValues(t *testing.T) {
	err := Histogram(nil, "t", "u", filepath.Join(t.TempDir(), "x.png"))
	assert.Error(t, err)
}

func TestMatrixHeatmapSingleRegionPair(t *testing.T) {
	c := testCollected()
	m := results.NewMatrix(c.UDP, results.KindUDP, func(r results.Result) float64 { return r.BandwidthMbps })
	err := MatrixHeatmap(m, "UDP Bandwidth (Mbps)", filepath.Join(t.TempDir(), "m.png"))
	assert.NoError(t, err)
}

func TestWriteReport(t *testing.T) {
	collected := testCollected()
	chartDir := t.TempDir()
	chartFiles, err := GenerateCharts(collected, chartDir)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "report.html")
	err = WriteReport(&ReportInput{
		Title:      "AWS Cross-Region Network Benchmark",
		Generated:  time.Date(2023, 4, 13, 21, 13, 59, 0, time.UTC),
		Collected:  collected,
		Summary:    results.Summarize(collected.All()),
		ChartDir:   chartDir,
		ChartFiles: chartFiles,
	}, path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(data)

	assert.Contains(t, html, "AWS Cross-Region Network Benchmark")
	assert.Contains(t, html, "us-east-1")
	assert.Contains(t, html, "data:image/png;base64,")
	// The failed test lands in the failures table.
	assert.Contains(t, html, "boom")
	// Every chart is inlined, so the report has no file references.
	assert.Equal(t, strings.Count(html, "data:image/png;base64,"), len(chartFiles))
}

func TestWriteReportWithoutCharts(t *testing.T) {
	collected := testCollected()
	path := filepath.Join(t.TempDir(), "report.html")
	err := WriteReport(&ReportInput{
		Title:     "Benchmark",
		Generated: time.Now(),
		Collected: collected,
		Summary:   results.Summarize(collected.All()),
	}, path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "data:image/png")
}

func TestWriteReportMissingChart(t *testing.T) {
	collected := testCollected()
	err := WriteReport(&ReportInput{
		Title:      "Benchmark",
		Generated:  time.Now(),
		Collected:  collected,
		Summary:    results.Summarize(collected.All()),
		ChartDir:   t.TempDir(),
		ChartFiles: []string{"missing.png"},
	}, filepath.Join(t.TempDir(), "report.html"))
	assert.Error(t, err)
}
