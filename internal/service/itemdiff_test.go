package service

import (
	"testing"

	"backoffice/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDiffItems(t *testing.T) {
	productA := uuid.New()
	productB := uuid.New()

	item := func(product uuid.UUID, key string, qty int) model.RequestItem {
		return model.RequestItem{ProductID: product, VariantKey: key, Quantity: qty}
	}

	tests := []struct {
		name string
		old  []model.RequestItem
		new  []model.RequestItem
		want map[ItemKey]int
	}{
		{
			name: "no change yields no deltas",
			old:  []model.RequestItem{item(productA, "color=red", 3)},
			new:  []model.RequestItem{item(productA, "color=red", 3)},
			want: map[ItemKey]int{},
		},
		{
			name: "reduced quantity returns stock",
			old:  []model.RequestItem{item(productA, "color=red", 3)},
			new:  []model.RequestItem{item(productA, "color=red", 1)},
			want: map[ItemKey]int{{ProductID: productA, VariantKey: "color=red"}: 2},
		},
		{
			name: "increased quantity consumes stock",
			old:  []model.RequestItem{item(productA, "color=red", 1)},
			new:  []model.RequestItem{item(productA, "color=red", 4)},
			want: map[ItemKey]int{{ProductID: productA, VariantKey: "color=red"}: -3},
		},
		{
			name: "removed line returns everything",
			old:  []model.RequestItem{item(productA, "color=red", 2)},
			new:  nil,
			want: map[ItemKey]int{{ProductID: productA, VariantKey: "color=red"}: 2},
		},
		{
			name: "added line consumes everything",
			old:  nil,
			new:  []model.RequestItem{item(productB, "", 5)},
			want: map[ItemKey]int{{ProductID: productB, VariantKey: ""}: -5},
		},
		{
			name: "same product different variants tracked separately",
			old:  []model.RequestItem{item(productA, "size=L", 2), item(productA, "size=M", 2)},
			new:  []model.RequestItem{item(productA, "size=L", 1), item(productA, "size=M", 3)},
			want: map[ItemKey]int{
				{ProductID: productA, VariantKey: "size=L"}: 1,
				{ProductID: productA, VariantKey: "size=M"}: -1,
			},
		},
		{
			name: "duplicate lines for one key accumulate",
			old:  []model.RequestItem{item(productA, "", 1), item(productA, "", 1)},
			new:  []model.RequestItem{item(productA, "", 5)},
			want: map[ItemKey]int{{ProductID: productA, VariantKey: ""}: -3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deltas := DiffItems(tt.old, tt.new)

			got := make(map[ItemKey]int, len(deltas))
			for _, d := range deltas {
				got[d.Key] = d.Change
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiffItems_OutputIsDeterministicallySorted(t *testing.T) {
	productA := uuid.New()
	productB := uuid.New()

	old := []model.RequestItem{
		{ProductID: productB, VariantKey: "b", Quantity: 1},
		{ProductID: productA, VariantKey: "z", Quantity: 1},
		{ProductID: productA, VariantKey: "a", Quantity: 1},
	}

	first := DiffItems(old, nil)
	second := DiffItems(old, nil)
	assert.Equal(t, first, second)

	for i := 1; i < len(first); i++ {
		prev, cur := first[i-1].Key, first[i].Key
		less := prev.ProductID.String() < cur.ProductID.String() ||
			(prev.ProductID == cur.ProductID && prev.VariantKey < cur.VariantKey)
		assert.True(t, less, "deltas not in canonical order at index %d", i)
	}
}
