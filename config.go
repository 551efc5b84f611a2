// CLAUDE:SUMMARY Service configuration: fetch, collection, cache layers plus the declared source set.
package veille

import (
	"github.com/hazyhaar/veille/internal/analysis"
	"github.com/hazyhaar/veille/internal/collector"
	"github.com/hazyhaar/veille/internal/connector"
	"github.com/hazyhaar/veille/internal/fetch"
)

// SourceType names for SourceConfig.Type.
const (
	SourceRSS       = "rss"
	SourceSearchAPI = "searchapi"
)

// SourceConfig declares one content source. The set is usually loaded from
// the YAML sources file by cmd/veille.
type SourceConfig struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"` // "rss" or "searchapi"
	URL  string `json:"url" yaml:"url"`
	// API applies to searchapi sources only.
	API connector.SearchAPIConfig `json:"api" yaml:"api"`
}

// Config configures the veille service. Zero values in the embedded
// sub-configs are filled with package defaults by their constructors.
type Config struct {
	// Fetch settings shared by all HTTP-backed sources.
	Fetch fetch.Config

	// Collector bounds one collection run.
	Collector collector.Config

	// Analysis configures the analysis cache (TTL).
	Analysis analysis.Config

	// Sources declares the content sources to collect from.
	Sources []SourceConfig

	// BufferDir, when set, enables the digest buffer: every fresh analysis
	// is deposited there as a markdown file.
	BufferDir string
}
