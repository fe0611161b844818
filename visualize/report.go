package visualize

import (
	"encoding/base64"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/hanksong/awsbenchmark/results"
)

// ReportInput names everything the HTML report embeds. Chart images are
// inlined as base64 so the report is a single portable file.
type ReportInput struct {
	Title     string
	Generated time.Time
	Collected *results.Collected
	Summary   *results.Summary

	// Directory holding the chart PNGs, and their file names.
	ChartDir   string
	ChartFiles []string
}

type reportData struct {
	Title     string
	Generated string
	Summary   *results.Summary
	Charts    []reportChart
	Failures  []results.Result
}

type reportChart struct {
	Name string
	URI  template.URL
}

// WriteReport renders the report to path.
func WriteReport(in *ReportInput, path string) error {
	data := &reportData{
		Title:     in.Title,
		Generated: in.Generated.Format(time.RFC1123),
		Summary:   in.Summary,
	}

	for _, name := range in.ChartFiles {
		raw, err := os.ReadFile(filepath.Join(in.ChartDir, name))
		if err != nil {
			return fmt.Errorf("reading chart %s: %w", name, err)
		}
		data.Charts = append(data.Charts, reportChart{
			Name: name,
			URI:  template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)),
		})
	}

	for _, r := range in.Collected.All() {
		if !r.OK() {
			data.Failures = append(data.Failures, r)
		}
	}

	tmpl, err := template.New("report").Parse(reportTemplate)
	if err != nil {
		return fmt.Errorf("parsing report template: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	return nil
}

const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2em auto; max-width: 70em; color: #222; }
h1, h2 { border-bottom: 1px solid #ccc; padding-bottom: 0.2em; }
table { border-collapse: collapse; margin: 1em 0; }
th, td { border: 1px solid #ccc; padding: 0.4em 0.8em; text-align: left; }
th { background: #f4f4f4; }
img { max-width: 100%; margin: 1em 0; }
.failure { color: #a00; }
footer { margin-top: 3em; color: #888; font-size: 0.85em; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>Generated {{.Generated}}</p>

<h2>Summary</h2>
<table>
<tr><th>Latency tests</th><td>{{.Summary.LatencyCount}}</td></tr>
<tr><th>TCP bandwidth tests</th><td>{{.Summary.P2PCount}}</td></tr>
<tr><th>UDP tests</th><td>{{.Summary.UDPCount}}</td></tr>
<tr><th>Failed tests</th><td>{{.Summary.FailureCount}}</td></tr>
{{if .Summary.P2PCount}}<tr><th>TCP bandwidth (Mbps) mean / min / max</th><td>{{printf "%.1f / %.1f / %.1f" .Summary.P2PMeanBandwidthMbps .Summary.P2PMinBandwidthMbps .Summary.P2PMaxBandwidthMbps}}</td></tr>{{end}}
{{if .Summary.UDPCount}}<tr><th>UDP bandwidth (Mbps) mean</th><td>{{printf "%.1f" .Summary.UDPMeanBandwidthMbps}}</td></tr>
<tr><th>UDP jitter (ms) mean</th><td>{{printf "%.3f" .Summary.UDPMeanJitterMs}}</td></tr>
<tr><th>UDP packet loss (%) mean</th><td>{{printf "%.2f" .Summary.UDPMeanLossPct}}</td></tr>{{end}}
{{if .Summary.LatencyCount}}<tr><th>Round-trip latency (ms) mean</th><td>{{printf "%.1f" .Summary.MeanLatencyMs}}</td></tr>{{end}}
</table>

{{if .Summary.LatencyPairAvg}}
<h2>Latency by Region Pair</h2>
<table>
<tr><th>Source</th><th>Destination</th><th>Avg RTT (ms)</th><th>Tests</th></tr>
{{range .Summary.LatencyPairAvg}}<tr><td>{{.SourceRegion}}</td><td>{{.DestRegion}}</td><td>{{printf "%.1f" .Mean}}</td><td>{{.Count}}</td></tr>
{{end}}</table>
{{end}}

{{if .Summary.P2PPairBandwidth}}
<h2>TCP Bandwidth by Region Pair</h2>
<table>
<tr><th>Source</th><th>Destination</th><th>Bandwidth (Mbps)</th><th>Tests</th></tr>
{{range .Summary.P2PPairBandwidth}}<tr><td>{{.SourceRegion}}</td><td>{{.DestRegion}}</td><td>{{printf "%.1f" .Mean}}</td><td>{{.Count}}</td></tr>
{{end}}</table>
{{end}}

{{if .Summary.UDPPairBandwidth}}
<h2>UDP Bandwidth by Region Pair</h2>
<table>
<tr><th>Source</th><th>Destination</th><th>Bandwidth (Mbps)</th><th>Tests</th></tr>
{{range .Summary.UDPPairBandwidth}}<tr><td>{{.SourceRegion}}</td><td>{{.DestRegion}}</td><td>{{printf "%.1f" .Mean}}</td><td>{{.Count}}</td></tr>
{{end}}</table>
{{end}}

{{if .Charts}}
<h2>Charts</h2>
{{range .Charts}}<img src="{{.URI}}" alt="{{.Name}}">
{{end}}
{{end}}

{{if .Failures}}
<h2>Failed Tests</h2>
<table>
<tr><th>Kind</th><th>Source</th><th>Destination</th><th>Error</th></tr>
{{range .Failures}}<tr class="failure"><td>{{.Kind}}</td><td>{{.SourceRegion}}</td><td>{{.DestRegion}}</td><td>{{.Error}}</td></tr>
{{end}}</table>
{{end}}

<footer>aws-network-benchmark</footer>
</body>
</html>
`
