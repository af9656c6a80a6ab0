package search

import (
	"encoding/json"
	"testing"

	"unify/internal/models"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	assert.True(t, Matches("", "anything", ""))
	assert.True(t, Matches("desk", "Standing DESK", ""))
	assert.True(t, Matches("  lamp ", "Chair", "comes with a Lamp"))
	assert.False(t, Matches("sofa", "Chair", "comes with a lamp"))
}

func TestRecordFromThread(t *testing.T) {
	r := RecordFromThread(models.Thread{ID: "p1", Title: "Desk", Category: " Furniture ", IsMarketItem: true})
	assert.Equal(t, "furniture", r.CategoryKey)
	assert.True(t, r.IsMarketItem)
}

func TestFilterFor(t *testing.T) {
	assert.Empty(t, filterFor(Query{Text: "x"}))
	assert.Equal(t,
		[]string{`categoryKey = "books"`, "isMarketItem = true"},
		filterFor(Query{Category: "Books", MarketOnly: true}),
	)
	assert.Equal(t, []string{`categoryKey = "say \"hi\""`}, filterFor(Query{Category: `Say "Hi"`}))
}

func TestHitID(t *testing.T) {
	assert.Equal(t, "p1", hitID(meili.Hit{"id": json.RawMessage(`"p1"`)}))
	assert.Equal(t, "", hitID(meili.Hit{"id": json.RawMessage(`12`)}))
	assert.Equal(t, "", hitID(meili.Hit{}))
}
