package artifact

import (
	"encoding/json"
	"os"
	"time"

	"quant_go/internal/domain"
	"quant_go/internal/infra"
)

// Record is the handoff artifact the feed process publishes and the viewer
// polls. One self-contained JSON document: either the previous record or
// this one is ever visible, never a mix.
type Record struct {
	PublishID   string    `json:"publish_id"`
	PublishedAt time.Time `json:"published_at"`

	ConnectionState string                `json:"connection_state"`
	Snapshot        *domain.OrderBookSnapshot `json:"snapshot"`
	Metrics         *domain.MetricsResult     `json:"metrics"`
	Latency         domain.LatencyStats       `json:"latency"`
	Counters        infra.MetricsSnapshot     `json:"counters"`
}

// Read loads and decodes the artifact at path.
func Read(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
