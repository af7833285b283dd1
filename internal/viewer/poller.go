// Package viewer renders the published artifact in a terminal. It shares
// nothing with the feed process except the artifact file.
package viewer

import (
	"log/slog"
	"os"
	"time"

	"quant_go/internal/artifact"
)

// Poller watches the artifact file and reloads it when its modification
// time advances. Rename-based publishing guarantees every read observes a
// complete document.
type Poller struct {
	path       string
	staleAfter time.Duration
	log        *slog.Logger

	lastModified time.Time
	updates      uint64
}

func NewPoller(path string, staleAfter time.Duration, log *slog.Logger) *Poller {
	return &Poller{path: path, staleAfter: staleAfter, log: log}
}

// Poll returns the freshly loaded record when the file changed since the
// previous call, or (nil, false) when nothing new is available. A missing
// file is not an error; the feed process may not have published yet.
func (p *Poller) Poll() (*artifact.Record, bool, error) {
	info, err := os.Stat(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if !info.ModTime().After(p.lastModified) {
		return nil, false, nil
	}

	rec, err := artifact.Read(p.path)
	if err != nil {
		return nil, false, err
	}
	p.lastModified = info.ModTime()
	p.updates++
	p.log.Debug("artifact reloaded",
		slog.String("publish_id", rec.PublishID),
		slog.Uint64("updates", p.updates))
	return rec, true, nil
}

// Updates reports how many distinct artifact versions were loaded.
func (p *Poller) Updates() uint64 { return p.updates }

// Stale reports whether the last loaded artifact is older than the
// configured threshold. Before the first load everything is stale.
func (p *Poller) Stale(now time.Time) bool {
	if p.lastModified.IsZero() {
		return true
	}
	return now.Sub(p.lastModified) > p.staleAfter
}
