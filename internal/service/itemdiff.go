package service

import (
	"sort"

	"backoffice/internal/model"

	"github.com/google/uuid"
)

// ItemKey addresses one stock counter: a product plus the canonical form
// of its variant selections.
type ItemKey struct {
	ProductID  uuid.UUID
	VariantKey string
}

// StockDelta is the stock change a line-item edit implies for one key.
// Change > 0 returns units to stock (quantity was reduced); Change < 0
// consumes stock (quantity was increased).
type StockDelta struct {
	Key    ItemKey
	Change int
}

// DiffItems computes the stock deltas between an order's current item
// list and its replacement. Pure function; applying the deltas is the
// caller's transactional concern. Output order is deterministic.
func DiffItems(oldItems, newItems []model.RequestItem) []StockDelta {
	changes := make(map[ItemKey]int)

	for _, item := range oldItems {
		key := ItemKey{ProductID: item.ProductID, VariantKey: item.VariantKey}
		changes[key] += item.Quantity // removed units go back to stock
	}
	for _, item := range newItems {
		key := ItemKey{ProductID: item.ProductID, VariantKey: item.VariantKey}
		changes[key] -= item.Quantity // added units come out of stock
	}

	deltas := make([]StockDelta, 0, len(changes))
	for key, change := range changes {
		if change == 0 {
			continue
		}
		deltas = append(deltas, StockDelta{Key: key, Change: change})
	}

	sort.Slice(deltas, func(i, j int) bool {
		if deltas[i].Key.ProductID != deltas[j].Key.ProductID {
			return deltas[i].Key.ProductID.String() < deltas[j].Key.ProductID.String()
		}
		return deltas[i].Key.VariantKey < deltas[j].Key.VariantKey
	})
	return deltas
}
