package client

import (
	"encoding/json"
	"sync"

	"github.com/tabletap/tabletap/models"
)

// Ledger is the device's append-only record of which order IDs it
// created. It only drives presentation ("mine" vs "the table's"); it is
// never an authorization mechanism.
type Ledger struct {
	mu    sync.Mutex
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// RecordMine appends order IDs to the persisted list, deduplicated,
// preserving insertion order.
func (l *Ledger) RecordMine(ids []uint) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, err := l.loadLocked()
	if err != nil {
		return err
	}

	seen := make(map[uint]struct{}, len(current))
	for _, id := range current {
		seen[id] = struct{}{}
	}
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		current = append(current, id)
	}

	raw, err := json.Marshal(current)
	if err != nil {
		return err
	}
	return l.store.Set(keyMyOrderIDs, raw)
}

// Snapshot reads the owned set once; feed it to PartitionOrders on each
// render cycle instead of re-reading storage per order.
func (l *Ledger) Snapshot() (map[uint]struct{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids, err := l.loadLocked()
	if err != nil {
		return nil, err
	}
	owned := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		owned[id] = struct{}{}
	}
	return owned, nil
}

// Clear wipes the ledger, e.g. when a session ends.
func (l *Ledger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Delete(keyMyOrderIDs)
}

func (l *Ledger) loadLocked() ([]uint, error) {
	raw, ok, err := l.store.Get(keyMyOrderIDs)
	if err != nil || !ok {
		return nil, err
	}
	var ids []uint
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, nil
	}
	return ids, nil
}

// PartitionOrders splits a table's feed into this device's orders and
// the rest. Pure: same inputs, same outputs, no storage access.
func PartitionOrders(orders []models.OrderRecord, owned map[uint]struct{}) (mine, group []models.OrderRecord) {
	for _, order := range orders {
		if _, ok := owned[order.ID]; ok {
			mine = append(mine, order)
		} else {
			group = append(group, order)
		}
	}
	return mine, group
}
