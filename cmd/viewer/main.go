package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quant_go/internal/analyzer"
	"quant_go/internal/artifact"
	"quant_go/internal/infra"
	"quant_go/internal/viewer"

	"github.com/joho/godotenv"
)

const clearScreen = "\033[2J\033[H"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	once := flag.Bool("once", false, "render the current artifact once and exit")
	exportPath := flag.String("export", "", "write the current book as CSV to this file and exit")
	analyze := flag.Bool("analyze", false, "print one-shot AI commentary and exit")
	strategy := flag.Bool("strategy", false, "print a one-shot AI strategy suggestion and exit")
	flag.Parse()

	godotenv.Load()
	cfg, err := infra.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := infra.NewStderrLogger(cfg.Logging.Level)
	slog.SetDefault(log)

	if *exportPath != "" || *analyze || *strategy || *once {
		if err := runOnce(cfg, log, *exportPath, *analyze, *strategy); err != nil {
			log.Error("viewer failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := watch(ctx, cfg, log); err != nil {
		log.Error("viewer failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// runOnce serves the single-shot flags from the current artifact.
func runOnce(cfg *infra.Config, log *slog.Logger, exportPath string, analyze, strategy bool) error {
	rec, err := artifact.Read(cfg.Publish.Path)
	if err != nil {
		return fmt.Errorf("no artifact at %s: %w", cfg.Publish.Path, err)
	}

	if exportPath != "" {
		if err := viewer.ExportCSV(exportPath, rec.Snapshot); err != nil {
			return err
		}
		fmt.Printf("exported %d levels to %s\n",
			len(rec.Snapshot.Bids)+len(rec.Snapshot.Asks), exportPath)
		return nil
	}

	viewer.Render(os.Stdout, rec, false, 1)

	if analyze || strategy {
		client := analyzer.NewClient(analyzer.Config{
			BaseURL:     cfg.Analyzer.URL,
			Model:       cfg.Analyzer.Model,
			APIKey:      cfg.Analyzer.APIKey,
			Timeout:     cfg.AnalyzerTimeout(),
			MinInterval: cfg.AnalyzerMinInterval(),
		}, &infra.Metrics{}, log)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.AnalyzerTimeout())
		defer cancel()

		if analyze {
			res, err := client.AnalyzeBook(ctx, rec)
			if err != nil {
				return renderDegraded(os.Stdout, err)
			}
			viewer.RenderAnalysis(os.Stdout, res.Sentiment, res.Analysis, res.Recommendation)
		}
		if strategy {
			res, err := client.SuggestStrategy(ctx, rec)
			if err != nil {
				return renderDegraded(os.Stdout, err)
			}
			viewer.RenderStrategy(os.Stdout, res.Strategy, res.Reasoning, res.ExecutionApproach)
		}
	}
	return nil
}

// renderDegraded turns an analyzer failure of any kind (missing key,
// throttle, open breaker, upstream error) into friendly output; commentary
// is best-effort and never fails the process.
func renderDegraded(w io.Writer, err error) error {
	fmt.Fprintf(w, "\nno commentary: %v\n", err)
	return nil
}

// watch re-renders the dashboard whenever the artifact changes.
func watch(ctx context.Context, cfg *infra.Config, log *slog.Logger) error {
	poller := viewer.NewPoller(cfg.Publish.Path, cfg.StaleAfter(), log)
	ticker := time.NewTicker(cfg.PollInterval())
	defer ticker.Stop()

	var last *artifact.Record
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		rec, changed, err := poller.Poll()
		if err != nil {
			log.Warn("artifact read failed", slog.Any("error", err))
			continue
		}
		if changed {
			last = rec
		}
		if last == nil {
			continue
		}
		fmt.Print(clearScreen)
		viewer.Render(os.Stdout, last, poller.Stale(time.Now()), poller.Updates())
	}
}
