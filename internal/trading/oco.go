package trading

import (
	"paperbroker/internal/models"
	"paperbroker/internal/quotes"
)

// OCOGroup is a one-cancels-other group: the first sibling to fill cancels
// every other open sibling.
type OCOGroup struct {
	ID     string
	orders []*models.Order
	active bool
}

// NewOCOGroup creates an active group over a fixed set of orders.
func NewOCOGroup(id string, orders ...*models.Order) *OCOGroup {
	fixed := make([]*models.Order, len(orders))
	copy(fixed, orders)
	return &OCOGroup{ID: id, orders: fixed, active: true}
}

// IsActive reports whether the group is still waiting for a fill.
func (g *OCOGroup) IsActive() bool {
	return g.active
}

// Orders returns the sibling orders in stored order.
func (g *OCOGroup) Orders() []*models.Order {
	out := make([]*models.Order, len(g.orders))
	copy(out, g.orders)
	return out
}

// EvaluateOCO evaluates g against account with the given quote source and
// price estimator.
func EvaluateOCO(g *OCOGroup, account *models.Account, src quotes.Source, est quotes.Estimator) (bool, error) {
	return g.Evaluate(account, &Executor{Quotes: src, Estimator: est})
}

// Evaluate tries each open sibling in order. It returns true once the group
// is resolved: either now, because a sibling filled, or earlier.
func (g *OCOGroup) Evaluate(account *models.Account, e *Executor) (bool, error) {
	if !g.active {
		return true, nil
	}
	for _, o := range g.orders {
		if !o.IsOpen() {
			continue
		}
		if _, err := e.Fill(account, o); err != nil {
			return false, err
		}
		if o.Status() == models.StatusFilled {
			g.resolve(o)
			return true, nil
		}
	}
	return false, nil
}

// Cancel cancels every open sibling and deactivates the group.
func (g *OCOGroup) Cancel() {
	g.resolve(nil)
}

func (g *OCOGroup) resolve(filled *models.Order) {
	for _, other := range g.orders {
		if other != filled && other.IsOpen() {
			_ = other.Cancel()
		}
	}
	g.active = false
}
