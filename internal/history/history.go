// Package history records relay run summaries in OpenSearch and serves the
// most recent ones back.
package history

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/telhawk-systems/userrelay/common/middleware"
	"github.com/telhawk-systems/userrelay/internal/metrics"
	"github.com/telhawk-systems/userrelay/internal/models"
	"github.com/telhawk-systems/userrelay/internal/relay"
	"github.com/telhawk-systems/userrelay/internal/secret"
)

const indexTimeout = 5 * time.Second

// Config holds OpenSearch connection settings.
type Config struct {
	Enabled  bool          `mapstructure:"enabled"`
	URL      string        `mapstructure:"url"`
	Username string        `mapstructure:"username"`
	Password secret.String `mapstructure:"password"`
	Insecure bool          `mapstructure:"insecure"`
	Index    string        `mapstructure:"index"`
}

const indexMapping = `{
  "mappings": {
    "properties": {
      "id":          {"type": "keyword"},
      "request_id":  {"type": "keyword"},
      "operation":   {"type": "keyword"},
      "success":     {"type": "boolean"},
      "kind":        {"type": "keyword"},
      "stage":       {"type": "keyword"},
      "records":     {"type": "integer"},
      "bytes":       {"type": "long"},
      "duration_ms": {"type": "long"},
      "@timestamp":  {"type": "date"}
    }
  }
}`

// Recorder is a relay.Observer that indexes one RunRecord per run.
// Indexing happens in the background; Close waits for pending writes.
type Recorder struct {
	client *opensearch.Client
	index  string
	logger *slog.Logger
	now    func() time.Time
	wg     sync.WaitGroup
}

type Option func(*opensearch.Config)

// WithTransport replaces the HTTP transport used to reach OpenSearch.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *opensearch.Config) { c.Transport = rt }
}

// NewRecorder connects to OpenSearch and verifies the cluster responds.
func NewRecorder(ctx context.Context, cfg Config, logger *slog.Logger, opts ...Option) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Index == "" {
		cfg.Index = "userrelay-runs"
	}

	osCfg := opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password.Reveal(),
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.Insecure, //nolint:gosec // opt-in for dev clusters
			},
		},
	}
	for _, opt := range opts {
		opt(&osCfg)
	}

	client, err := opensearch.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	info, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to ping opensearch: %w", err)
	}
	defer info.Body.Close()
	if info.IsError() {
		return nil, fmt.Errorf("opensearch returned error: %s", info.Status())
	}

	return &Recorder{
		client: client,
		index:  cfg.Index,
		logger: logger,
		now:    time.Now,
	}, nil
}

// EnsureIndex creates the run index with its mapping when it is missing.
func (r *Recorder) EnsureIndex(ctx context.Context) error {
	exists, err := r.client.Indices.Exists([]string{r.index}, r.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index %s: %w", r.index, err)
	}
	exists.Body.Close()
	if exists.StatusCode == http.StatusOK {
		return nil
	}

	res, err := r.client.Indices.Create(r.index,
		r.client.Indices.Create.WithContext(ctx),
		r.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", r.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		// Another replica may have won the race.
		if bytes.Contains(body, []byte("resource_already_exists_exception")) {
			return nil
		}
		return fmt.Errorf("opensearch error: %s - %s", res.Status(), string(body))
	}
	return nil
}

func (r *Recorder) ObserveStage(relay.Operation, relay.Stage, time.Duration, error) {}

// ObserveResult queues the run summary for indexing.
func (r *Recorder) ObserveResult(ctx context.Context, res relay.Result) {
	rec := models.NewRunRecord(uuid.NewString(), middleware.GetRequestID(ctx), res, r.now())

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), indexTimeout)
		defer cancel()
		if err := r.Index(ictx, rec); err != nil {
			metrics.HistoryIndexFailures.Inc()
			r.logger.WarnContext(ictx, "failed to index relay run",
				slog.String("run_id", rec.ID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Index stores rec under its ID.
func (r *Recorder) Index(ctx context.Context, rec models.RunRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}

	res, err := r.client.Index(r.index, bytes.NewReader(body),
		r.client.Index.WithContext(ctx),
		r.client.Index.WithDocumentID(rec.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to index run record: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch error: %s", res.Status())
	}
	return nil
}

// Recent returns the newest limit runs, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) (*models.RunList, error) {
	searchBody := map[string]interface{}{
		"size": limit,
		"sort": []map[string]interface{}{
			{"@timestamp": map[string]string{"order": "desc"}},
		},
	}
	bodyBytes, err := json.Marshal(searchBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search body: %w", err)
	}

	res, err := r.client.Search(
		r.client.Search.WithContext(ctx),
		r.client.Search.WithIndex(r.index),
		r.client.Search.WithBody(bytes.NewReader(bodyBytes)),
		r.client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search runs: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("opensearch error: %s - %s", res.Status(), string(body))
	}

	var searchResult struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&searchResult); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	runs := make([]models.RunRecord, 0, len(searchResult.Hits.Hits))
	for _, hit := range searchResult.Hits.Hits {
		var rec models.RunRecord
		if err := json.Unmarshal(hit.Source, &rec); err != nil {
			continue
		}
		runs = append(runs, rec)
	}

	return &models.RunList{Runs: runs, Total: searchResult.Hits.Total.Value}, nil
}

// Ping reports whether the cluster is reachable.
func (r *Recorder) Ping(ctx context.Context) error {
	res, err := r.client.Ping(r.client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("opensearch ping: %s", res.Status())
	}
	return nil
}

// Close waits for queued index writes to finish.
func (r *Recorder) Close() {
	r.wg.Wait()
}
