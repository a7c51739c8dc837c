package cart

import (
	"iter"
	"slices"

	"github.com/shopspring/decimal"

	"storefront-core/internal/domain"
)

// Aggregation is a cart grouped by domain.LineKey. It holds the raw lines and groups them on every
// iteration, so All can be ranged over any number of times.
type Aggregation struct {
	lines []domain.CartLine
}

func NewAggregation(lines []domain.CartLine) *Aggregation {
	return &Aggregation{lines: lines}
}

// All yields one group per distinct key in first-seen order of the underlying lines.
func (a *Aggregation) All() iter.Seq[domain.CartGroup] {
	return func(yield func(domain.CartGroup) bool) {
		index := make(map[domain.LineKey]int)
		var groups []domain.CartGroup
		for _, l := range a.lines {
			key := l.Key()
			i, ok := index[key]
			if !ok {
				i = len(groups)
				index[key] = i
				groups = append(groups, domain.CartGroup{
					Product:  l.Product,
					Size:     key.Size,
					Subtotal: decimal.Zero,
				})
			}
			g := &groups[i]
			g.TotalQuantity += l.Quantity
			g.LineIDs = append(g.LineIDs, l.ID)
			g.Subtotal = g.Subtotal.Add(l.Subtotal())
		}
		for _, g := range groups {
			if !yield(g) {
				return
			}
		}
	}
}

func (a *Aggregation) Groups() []domain.CartGroup {
	return slices.Collect(a.All())
}

// Lines returns the raw lines the aggregation was built from.
func (a *Aggregation) Lines() []domain.CartLine {
	return a.lines
}
