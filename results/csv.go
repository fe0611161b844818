package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// Column order is fixed so appended runs stay comparable.
var csvHeader = []string{
	"timestamp",
	"kind",
	"protocol",
	"source_region",
	"source_ip",
	"dest_region",
	"dest_ip",
	"bandwidth_mbps",
	"transfer_mb",
	"duration_sec",
	"retransmits",
	"streams",
	"jitter_ms",
	"packets",
	"lost_packets",
	"lost_pct",
	"packets_transmitted",
	"packets_received",
	"min_latency_ms",
	"avg_latency_ms",
	"max_latency_ms",
	"mdev_ms",
	"raw_file",
	"error",
}

// WriteCSV writes records with the fixed column order, header included.
func WriteCSV(w io.Writer, items []Result) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range items {
		if err := writer.Write(csvRecord(r)); err != nil {
			return err
		}
	}
	return writer.Error()
}

// AppendCSV appends records to path, writing the header only when the file
// is new or empty.
func AppendCSV(path string, items []Result) error {
	info, statErr := os.Stat(path)
	needHeader := os.IsNotExist(statErr) || (statErr == nil && info.Size() == 0)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	defer writer.Flush()

	if needHeader {
		if err := writer.Write(csvHeader); err != nil {
			return err
		}
	}
	for _, r := range items {
		if err := writer.Write(csvRecord(r)); err != nil {
			return err
		}
	}
	return writer.Error()
}

// ReadCSV reads records previously written by WriteCSV or AppendCSV.
func ReadCSV(r io.Reader) ([]Result, error) {
	reader := csv.NewReader(r)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	items := []Result{}
	for i, row := range rows {
		if i == 0 && len(row) > 0 && row[0] == "timestamp" {
			continue
		}
		if len(row) != len(csvHeader) {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(row), len(csvHeader))
		}
		ts, err := time.Parse(time.RFC3339, row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing timestamp: %w", i, err)
		}
		res := Result{
			Timestamp:    ts,
			Kind:         Kind(row[1]),
			Protocol:     row[2],
			SourceRegion: row[3],
			SourceIP:     row[4],
			DestRegion:   row[5],
			DestIP:       row[6],
			RawFile:      row[22],
			Error:        row[23],
		}
		res.BandwidthMbps, _ = strconv.ParseFloat(row[7], 64)
		res.TransferMB, _ = strconv.ParseFloat(row[8], 64)
		res.DurationSec, _ = strconv.ParseFloat(row[9], 64)
		res.Retransmits, _ = strconv.Atoi(row[10])
		res.Streams, _ = strconv.Atoi(row[11])
		res.JitterMs, _ = strconv.ParseFloat(row[12], 64)
		res.Packets, _ = strconv.Atoi(row[13])
		res.LostPackets, _ = strconv.Atoi(row[14])
		res.LostPct, _ = strconv.ParseFloat(row[15], 64)
		res.PacketsTransmitted, _ = strconv.Atoi(row[16])
		res.PacketsReceived, _ = strconv.Atoi(row[17])
		res.MinLatencyMs, _ = strconv.ParseFloat(row[18], 64)
		res.AvgLatencyMs, _ = strconv.ParseFloat(row[19], 64)
		res.MaxLatencyMs, _ = strconv.ParseFloat(row[20], 64)
		res.MdevMs, _ = strconv.ParseFloat(row[21], 64)
		items = append(items, res)
	}
	return items, nil
}

func csvRecord(r Result) []string {
	return []string{
		r.Timestamp.UTC().Format(time.RFC3339),
		string(r.Kind),
		r.Protocol,
		r.SourceRegion,
		r.SourceIP,
		r.DestRegion,
		r.DestIP,
		formatFloat(r.BandwidthMbps),
		formatFloat(r.TransferMB),
		formatFloat(r.DurationSec),
		strconv.Itoa(r.Retransmits),
		strconv.Itoa(r.Streams),
		formatFloat(r.JitterMs),
		strconv.Itoa(r.Packets),
		strconv.Itoa(r.LostPackets),
		formatFloat(r.LostPct),
		strconv.Itoa(r.PacketsTransmitted),
		strconv.Itoa(r.PacketsReceived),
		formatFloat(r.MinLatencyMs),
		formatFloat(r.AvgLatencyMs),
		formatFloat(r.MaxLatencyMs),
		formatFloat(r.MdevMs),
		r.RawFile,
		r.Error,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
