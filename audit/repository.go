// audit/repository.go
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	logger "github.com/schoolsync/pulse/logging"
)

type Repository interface {
	Record(ctx context.Context, entry Entry) error
	Query(ctx context.Context, from, to time.Time, actorID, targetID string) ([]Entry, error)
}

const auditIndex = "pulse-audit"

type ElasticsearchRepository struct {
	esClient *elasticsearch.Client
}

// NewElasticsearchRepository creates a new repository with a given Elasticsearch client URL.
func NewElasticsearchRepository(esURL string) (*ElasticsearchRepository, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{esURL},
	}
	esClient, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &ElasticsearchRepository{esClient: esClient}, nil
}

// Record indexes an audit entry in Elasticsearch.
func (r *ElasticsearchRepository) Record(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      auditIndex,
		DocumentID: fmt.Sprintf("%d-%s-%s", entry.Timestamp.UnixNano(), entry.ActorID, entry.Action),
		Body:       strings.NewReader(string(data)),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, r.esClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing document: %s", res.String())
	}

	return nil
}

// Query searches audit entries within a time frame, optionally filtered by
// actor and target.
func (r *ElasticsearchRepository) Query(ctx context.Context, from, to time.Time, actorID, targetID string) ([]Entry, error) {
	must := []interface{}{
		map[string]interface{}{
			"range": map[string]interface{}{
				"timestamp": map[string]interface{}{
					"gte": from.Format(time.RFC3339),
					"lte": to.Format(time.RFC3339),
				},
			},
		},
	}
	if actorID != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{"actor_id": actorID},
		})
	}
	if targetID != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{"target_id": targetID},
		})
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must},
		},
	}

	var buf strings.Builder
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, err
	}

	res, err := r.esClient.Search(
		r.esClient.Search.WithContext(ctx),
		r.esClient.Search.WithIndex(auditIndex),
		r.esClient.Search.WithBody(strings.NewReader(buf.String())),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("error searching documents: %s", res.String())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source Entry `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		entries = append(entries, hit.Source)
	}
	return entries, nil
}

// LogRepository is the fallback sink when Elasticsearch is unavailable:
// entries land in the structured log and queries are unsupported.
type LogRepository struct{}

func NewLogRepository() *LogRepository {
	return &LogRepository{}
}

func (r *LogRepository) Record(ctx context.Context, entry Entry) error {
	logger.Info("AUDIT",
		zap.Time("timestamp", entry.Timestamp),
		zap.String("actorID", entry.ActorID),
		zap.String("action", entry.Action),
		zap.String("targetID", entry.TargetID),
		zap.String("reason", entry.Reason))
	return nil
}

func (r *LogRepository) Query(ctx context.Context, from, to time.Time, actorID, targetID string) ([]Entry, error) {
	return nil, errors.New("audit queries are not supported by the log repository")
}
