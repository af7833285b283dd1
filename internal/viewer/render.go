package viewer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"quant_go/internal/artifact"
)

const depthShown = 5

// Render writes a one-screen dashboard for the record. The caller decides
// whether to clear the terminal between frames.
func Render(w io.Writer, rec *artifact.Record, stale bool, updates uint64) {
	snap := rec.Snapshot
	if snap == nil {
		fmt.Fprintf(w, "no order book data yet (%s)\n", strings.ToUpper(rec.ConnectionState))
		return
	}
	badge := strings.ToUpper(rec.ConnectionState)
	if stale {
		badge += " [STALE]"
	}

	fmt.Fprintf(w, "%s  seq %d  %s  updates %d\n",
		snap.Symbol, snap.Sequence, badge, updates)
	fmt.Fprintf(w, "published %s (%s)\n\n",
		rec.PublishedAt.Format("15:04:05.000"), rec.PublishID)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintf(tw, "best bid\tbest ask\tmid\tspread\t\n")
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n\n",
		snap.BestBid().String(), snap.BestAsk().String(),
		snap.MidPrice().StringFixed(4), snap.Spread().String())

	fmt.Fprintf(tw, "\tprice\tsize\t\n")
	asks := snap.Asks
	if len(asks) > depthShown {
		asks = asks[:depthShown]
	}
	for i := len(asks) - 1; i >= 0; i-- {
		fmt.Fprintf(tw, "ask\t%s\t%s\t\n", asks[i].Price.String(), asks[i].Size.String())
	}
	bids := snap.Bids
	if len(bids) > depthShown {
		bids = bids[:depthShown]
	}
	for _, lvl := range bids {
		fmt.Fprintf(tw, "bid\t%s\t%s\t\n", lvl.Price.String(), lvl.Size.String())
	}
	tw.Flush()

	if m := rec.Metrics; m != nil {
		fmt.Fprintf(w, "\norder size $%.2f  volatility %.2f\n", m.OrderSize, m.Volatility)
		mtw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintf(mtw, "slippage\t$%.4f\t\n", m.Slippage)
		fmt.Fprintf(mtw, "impact\t$%.4f\t(perm %.6f, temp %.6f)\t\n",
			m.ImpactCost, m.ImpactPermanent, m.ImpactTemporary)
		fmt.Fprintf(mtw, "fee\t$%.4f\t(tier %.4f%%)\t\n", m.Fee, m.FeeRate*100)
		fmt.Fprintf(mtw, "maker prob\t%.2f%%\t\n", m.MakerProb*100)
		fmt.Fprintf(mtw, "net cost\t$%.4f\t\n", m.NetCost)
		mtw.Flush()
	}

	if rec.Latency.Count > 0 {
		fmt.Fprintf(w, "\nestimate latency: p50 %.2fms  p95 %.2fms  p99 %.2fms  max %.2fms (n=%d)\n",
			rec.Latency.P50MS, rec.Latency.P95MS, rec.Latency.P99MS,
			rec.Latency.MaxMS, rec.Latency.Count)
	}

	c := rec.Counters
	fmt.Fprintf(w, "updates %d  malformed %d  invalid %d  stale %d  reconnects %d\n",
		c.UpdatesProcessed, c.DroppedMalformed, c.DroppedInvalid, c.StaleRejects, c.Reconnects)
}

// RenderAnalysis appends AI commentary below the dashboard.
func RenderAnalysis(w io.Writer, sentiment, analysis, recommendation string) {
	fmt.Fprintf(w, "\nsentiment: %s\n%s\nrecommendation: %s\n", sentiment, analysis, recommendation)
}

// RenderStrategy appends an execution strategy suggestion.
func RenderStrategy(w io.Writer, strategy, reasoning, approach string) {
	fmt.Fprintf(w, "\nstrategy: %s\n%s\nexecution: %s\n", strategy, reasoning, approach)
}
