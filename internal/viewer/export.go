package viewer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"quant_go/internal/domain"
)

var csvHeader = []string{"price", "size", "type", "timestamp", "symbol"}

// WriteCSV writes the full book as rows of price,size,type,timestamp,symbol
// with bids before asks.
func WriteCSV(w io.Writer, snap *domain.OrderBookSnapshot) error {
	if snap == nil {
		return fmt.Errorf("csv export: no snapshot")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	ts := snap.ReceivedAt.UTC().Format(time.RFC3339Nano)
	writeSide := func(levels []domain.Level, side string) error {
		for _, lvl := range levels {
			row := []string{lvl.Price.String(), lvl.Size.String(), side, ts, snap.Symbol}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		return nil
	}
	if err := writeSide(snap.Bids, "bid"); err != nil {
		return err
	}
	if err := writeSide(snap.Asks, "ask"); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

// ExportCSV writes the book to a file, creating or truncating it.
func ExportCSV(path string, snap *domain.OrderBookSnapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv export: %w", err)
	}
	if err := WriteCSV(f, snap); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
