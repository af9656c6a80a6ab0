package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"unify/internal/models"
	"unify/internal/observability"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxThreads = "unify_threads"

// Meili implements Index on Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the thread index.
// An unreachable server leaves the index unhealthy until the health loop
// sees it recover.
func NewMeili(url, apiKey string) *Meili {
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		done:   make(chan struct{}),
	}
	if _, err := m.client.Health(); err != nil {
		observability.GlobalLogger.Warn("meilisearch unavailable", "url", url, "error", err.Error())
	} else {
		m.healthy.Store(true)
		m.configure()
	}
	go m.healthLoop()
	return m
}

func (m *Meili) configure() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: idxThreads, PrimaryKey: "id"}); err != nil {
		observability.GlobalLogger.Debug("create index (may already exist)", "index", idxThreads, "error", err.Error())
	}
	index := m.client.Index(idxThreads)
	filterable := []interface{}{"categoryKey", "isMarketItem"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		observability.GlobalLogger.Warn("update filterable attributes", "index", idxThreads, "error", err.Error())
	}
	searchable := []string{"title", "body"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		observability.GlobalLogger.Warn("update searchable attributes", "index", idxThreads, "error", err.Error())
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			was := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !was {
				observability.GlobalLogger.Info("meilisearch recovered, reconfiguring index")
				m.configure()
			}
		}
	}
}

// Close stops the health loop.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch answered its last health check.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

func (m *Meili) IndexThread(_ context.Context, r ThreadRecord) error {
	_, err := m.client.Index(idxThreads).AddDocuments([]ThreadRecord{r}, nil)
	return err
}

func (m *Meili) DeleteThread(_ context.Context, id string) error {
	_, err := m.client.Index(idxThreads).DeleteDocument(id, nil)
	return err
}

func (m *Meili) Search(_ context.Context, q Query) ([]string, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}
	limit := int64(q.Limit)
	if limit <= 0 {
		limit = 50
	}
	req := &meili.SearchRequest{
		IndexUID: idxThreads,
		Query:    q.Text,
		Limit:    limit,
	}
	if f := filterFor(q); len(f) > 0 {
		req.Filter = f
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{Queries: []*meili.SearchRequest{req}})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}
	ids := make([]string, 0)
	for _, sr := range resp.Results {
		for _, hit := range sr.Hits {
			if id := hitID(hit); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

func filterFor(q Query) []string {
	var filters []string
	if q.Category != "" {
		key, _ := json.Marshal(models.HubKey(q.Category))
		filters = append(filters, "categoryKey = "+string(key))
	}
	if q.MarketOnly {
		filters = append(filters, "isMarketItem = true")
	}
	return filters
}

func hitID(hit meili.Hit) string {
	raw, ok := hit["id"]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
