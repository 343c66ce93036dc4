package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"verifier/internal/model"
	"verifier/pkg/config"

	es "github.com/elastic/go-elasticsearch/v8"
)

const (
	timestampField = "@timestamp"
	sourceField    = "verificationTaskId"
)

// LogRecordCounter counts raw log records per minute in the log index
type LogRecordCounter struct {
	client *es.Client
	index  string
}

// NewLogRecordCounter creates a counter from config. Returns nil, nil when disabled.
func NewLogRecordCounter(cfg config.ElasticsearchConfig) (*LogRecordCounter, error) {
	if !cfg.Enabled || len(cfg.Addresses) == 0 {
		return nil, nil
	}

	client, err := es.NewClient(es.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}
	return NewLogRecordCounterWithClient(client, cfg.Index), nil
}

// NewLogRecordCounterWithClient wraps an existing client
func NewLogRecordCounterWithClient(client *es.Client, index string) *LogRecordCounter {
	if index == "" {
		index = "logs-*"
	}
	return &LogRecordCounter{client: client, index: index}
}

type histogramResponse struct {
	Aggregations struct {
		PerMinute struct {
			Buckets []struct {
				Key      int64 `json:"key"`
				DocCount int64 `json:"doc_count"`
			} `json:"buckets"`
		} `json:"per_minute"`
	} `json:"aggregations"`
}

// CountPerMinute returns record counts keyed by minute start for a source inside w.
// Minutes without records are absent from the map.
func (c *LogRecordCounter) CountPerMinute(ctx context.Context, sourceID string, w model.Window) (map[time.Time]int64, error) {
	query := map[string]interface{}{
		"size": 0,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{sourceField: sourceID}},
					map[string]interface{}{"range": map[string]interface{}{
						timestampField: map[string]interface{}{
							"gte":    w.Start.UnixMilli(),
							"lt":     w.End.UnixMilli(),
							"format": "epoch_millis",
						},
					}},
				},
			},
		},
		"aggs": map[string]interface{}{
			"per_minute": map[string]interface{}{
				"date_histogram": map[string]interface{}{
					"field":          timestampField,
					"fixed_interval": "1m",
					"min_doc_count":  1,
				},
			},
		},
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal count query: %w", err)
	}

	res, err := c.client.Search(
		c.client.Search.WithContext(ctx),
		c.client.Search.WithIndex(c.index),
		c.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count log records: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch count error: %s", res.String())
	}

	var parsed histogramResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode count response: %w", err)
	}

	counts := make(map[time.Time]int64, len(parsed.Aggregations.PerMinute.Buckets))
	for _, b := range parsed.Aggregations.PerMinute.Buckets {
		if b.DocCount > 0 {
			counts[time.UnixMilli(b.Key).UTC()] = b.DocCount
		}
	}
	return counts, nil
}
