package viewer

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"quant_go/internal/artifact"
	"quant_go/internal/domain"

	"github.com/shopspring/decimal"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func lvl(p, s string) domain.Level {
	return domain.Level{Price: decimal.RequireFromString(p), Size: decimal.RequireFromString(s)}
}

func testRecord(seq int64) *artifact.Record {
	return &artifact.Record{
		PublishID:       "test-id",
		PublishedAt:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		ConnectionState: "connected",
		Snapshot: &domain.OrderBookSnapshot{
			Exchange:   "okx",
			Symbol:     "BTC-USDT-SWAP",
			Sequence:   seq,
			ReceivedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			Bids:       []domain.Level{lvl("100.00", "1.5"), lvl("99.98", "2.0")},
			Asks:       []domain.Level{lvl("100.02", "0.5"), lvl("100.05", "3.0")},
		},
		Metrics: &domain.MetricsResult{
			Slippage:   0.13,
			ImpactCost: 0.0040004,
			MakerProb:  0.8581489,
			FeeRate:    0.0008,
			Fee:        0.008,
			NetCost:    0.1420004,
			OrderSize:  10,
			Volatility: 0.2,
		},
		Latency: domain.LatencyStats{Stage: "estimate", Count: 12, P50MS: 0.4, P95MS: 1.2, P99MS: 2.1, MaxMS: 3.0},
	}
}

func writeArtifact(t *testing.T, path string, rec *artifact.Record) {
	t.Helper()
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestPoller_DetectsChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.json")
	p := NewPoller(path, time.Minute, discardLogger())

	// Nothing published yet.
	if rec, changed, err := p.Poll(); err != nil || changed || rec != nil {
		t.Fatalf("empty poll = (%v, %v, %v), want (nil, false, nil)", rec, changed, err)
	}
	if !p.Stale(time.Now()) {
		t.Error("poller must report stale before the first load")
	}

	writeArtifact(t, path, testRecord(1))
	rec, changed, err := p.Poll()
	if err != nil || !changed {
		t.Fatalf("first poll = (changed=%v, err=%v), want a load", changed, err)
	}
	if rec.Snapshot.Sequence != 1 {
		t.Errorf("sequence = %d, want 1", rec.Snapshot.Sequence)
	}

	// Unchanged file: no reload.
	if _, changed, _ := p.Poll(); changed {
		t.Error("poll reloaded an unchanged file")
	}
	if p.Updates() != 1 {
		t.Errorf("updates = %d, want 1", p.Updates())
	}

	// Touch with a newer mtime and new content.
	writeArtifact(t, path, testRecord(2))
	future := time.Now().Add(time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
	rec, changed, err = p.Poll()
	if err != nil || !changed {
		t.Fatalf("poll after rewrite = (changed=%v, err=%v), want a load", changed, err)
	}
	if rec.Snapshot.Sequence != 2 {
		t.Errorf("sequence = %d, want 2", rec.Snapshot.Sequence)
	}
}

func TestPoller_Stale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.json")
	writeArtifact(t, path, testRecord(1))

	p := NewPoller(path, 100*time.Millisecond, discardLogger())
	if _, changed, err := p.Poll(); err != nil || !changed {
		t.Fatalf("poll failed: %v", err)
	}

	if p.Stale(time.Now()) {
		t.Error("fresh artifact reported stale")
	}
	if !p.Stale(time.Now().Add(time.Second)) {
		t.Error("aged artifact not reported stale")
	}
}

func TestPoller_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.json")
	if err := os.WriteFile(path, []byte("{truncated"), 0o644); err != nil {
		t.Fatal(err)
	}
	p := NewPoller(path, time.Minute, discardLogger())
	if _, _, err := p.Poll(); err == nil {
		t.Fatal("expected decode error for corrupt artifact")
	}
}

func TestRender_Dashboard(t *testing.T) {
	var buf strings.Builder
	Render(&buf, testRecord(42), false, 7)
	out := buf.String()

	for _, want := range []string{
		"BTC-USDT-SWAP", "seq 42", "CONNECTED", "updates 7",
		"100.02", "100.0100", "99.98", // best ask, mid, second bid
		"$0.1300", "$0.0040", "85.81%", "$0.1420",
		"p95 1.20ms",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dashboard missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "[STALE]") {
		t.Error("fresh dashboard must not carry the stale badge")
	}
}

func TestRender_StaleBadge(t *testing.T) {
	var buf strings.Builder
	Render(&buf, testRecord(1), true, 1)
	if !strings.Contains(buf.String(), "[STALE]") {
		t.Error("stale dashboard missing the badge")
	}
}

func TestRender_WithoutSnapshot(t *testing.T) {
	var buf strings.Builder
	Render(&buf, &artifact.Record{ConnectionState: "connecting"}, true, 0)

	out := buf.String()
	if !strings.Contains(out, "no order book data") {
		t.Errorf("output %q missing the empty-book notice", out)
	}
	if !strings.Contains(out, "CONNECTING") {
		t.Errorf("output %q missing the connection state", out)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf strings.Builder
	if err := WriteCSV(&buf, testRecord(1).Snapshot); err != nil {
		t.Fatal(err)
	}

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := len(rows), 5; got != want { // header + 2 bids + 2 asks
		t.Fatalf("rows = %d, want %d", got, want)
	}
	if got, want := strings.Join(rows[0], ","), "price,size,type,timestamp,symbol"; got != want {
		t.Errorf("header = %q, want %q", got, want)
	}
	if rows[1][2] != "bid" || rows[3][2] != "ask" {
		t.Errorf("side ordering wrong: %v", rows)
	}
	if rows[1][0] != "100.00" && rows[1][0] != "100" {
		t.Errorf("first bid price = %q", rows[1][0])
	}
	if rows[1][4] != "BTC-USDT-SWAP" {
		t.Errorf("symbol = %q", rows[1][4])
	}
}

func TestExportCSV_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.csv")
	if err := ExportCSV(path, testRecord(1).Snapshot); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "price,size,type,timestamp,symbol") {
		t.Errorf("unexpected file contents: %s", data)
	}

	if err := ExportCSV(path, nil); err == nil {
		t.Error("nil snapshot must fail")
	}
}
