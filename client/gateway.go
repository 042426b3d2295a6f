package client

import (
	"context"

	"github.com/tabletap/tabletap/models"
)

// Gateway submits compiled batches to the durable store. It is the only
// path orders take to persistence, and the only writer of the ledger on
// success. It mutates nothing else: the cart stays intact until the
// caller sees Submit return nil.
type Gateway struct {
	Store  OrderStore
	Ledger *Ledger
}

func NewGateway(store OrderStore, ledger *Ledger) *Gateway {
	return &Gateway{Store: store, Ledger: ledger}
}

// Submit sends the whole batch as one logical submission. The store
// dedups rows by client ref, so retrying after a partial failure means
// resending the same records unchanged; rows that landed the first time
// are returned, not re-inserted. On success every new canonical ID is
// recorded in the ledger before control returns.
func (g *Gateway) Submit(ctx context.Context, records []models.OrderRecord) ([]models.OrderRecord, error) {
	result, err := g.Store.InsertOrders(ctx, records)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(result.Orders))
	for _, order := range result.Orders {
		ids = append(ids, order.ID)
	}
	if err := g.Ledger.RecordMine(ids); err != nil {
		return nil, err
	}

	return result.Orders, nil
}
