package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/imprenta-ai/flexoplan/flexoplan"
)

// BadgerStore implements Store on an embedded BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a database at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Badger's own logging is noise here

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// PutMachine upserts a machine record.
func (s *BadgerStore) PutMachine(ctx context.Context, m flexoplan.Machine) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, machineKey(m.ID), m)
	})
}

// PutOrder upserts an order record.
func (s *BadgerStore) PutOrder(ctx context.Context, o flexoplan.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, orderKey(o.ID), o)
	})
}

// GetMachineByID returns a machine or (nil, nil) when absent.
func (s *BadgerStore) GetMachineByID(ctx context.Context, id int) (*flexoplan.Machine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var machine *flexoplan.Machine
	err := s.db.View(func(txn *badger.Txn) error {
		m, err := getJSON[flexoplan.Machine](txn, machineKey(id))
		machine = m
		return err
	})
	return machine, err
}

// GetMachineByNameOrPseudonym resolves a machine by display name or
// pseudonym, ignoring case and surrounding whitespace.
func (s *BadgerStore) GetMachineByNameOrPseudonym(ctx context.Context, name string) (*flexoplan.Machine, error) {
	machines, err := s.GetAllMachineStatus(ctx)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	for i := range machines {
		if strings.EqualFold(machines[i].Name, name) || strings.EqualFold(machines[i].Pseudonym, name) {
			return &machines[i], nil
		}
	}
	return nil, nil
}

// GetAllMachineStatus returns every machine, ordered by id.
func (s *BadgerStore) GetAllMachineStatus(ctx context.Context) ([]flexoplan.Machine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var machines []flexoplan.Machine
	err := s.db.View(func(txn *badger.Txn) error {
		return scanJSON(txn, []byte(machinePrefix), func(m flexoplan.Machine) {
			machines = append(machines, m)
		})
	})
	return machines, err
}

// UpdateMachineStatus patches a machine's status and/or functional ink
// count. Nil fields are left untouched.
func (s *BadgerStore) UpdateMachineStatus(ctx context.Context, id int, status *flexoplan.MachineStatus, functionalInks *int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		machine, err := getJSON[flexoplan.Machine](txn, machineKey(id))
		if err != nil {
			return err
		}
		if machine == nil {
			return fmt.Errorf("machine %d not found", id)
		}
		if status != nil {
			machine.Status = *status
		}
		if functionalInks != nil {
			machine.FunctionalInks = *functionalInks
		}
		return setJSON(txn, machineKey(id), *machine)
	})
}

// GetOrderByID returns an order or (nil, nil) when absent.
func (s *BadgerStore) GetOrderByID(ctx context.Context, id int) (*flexoplan.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var order *flexoplan.Order
	err := s.db.View(func(txn *badger.Txn) error {
		o, err := getJSON[flexoplan.Order](txn, orderKey(id))
		order = o
		return err
	})
	return order, err
}

// GetSchedulableOrdersForMachine returns the machine's pending orders,
// ordered by id.
func (s *BadgerStore) GetSchedulableOrdersForMachine(ctx context.Context, machineID int) ([]flexoplan.Order, error) {
	return s.schedulableOrders(ctx, func(o flexoplan.Order) bool {
		return o.MachineID == machineID
	})
}

// GetSchedulableOrdersForAllMachines returns every pending order that
// has a machine assignment, ordered by id.
func (s *BadgerStore) GetSchedulableOrdersForAllMachines(ctx context.Context) ([]flexoplan.Order, error) {
	return s.schedulableOrders(ctx, func(o flexoplan.Order) bool {
		return o.MachineID != 0
	})
}

func (s *BadgerStore) schedulableOrders(ctx context.Context, keep func(flexoplan.Order) bool) ([]flexoplan.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var orders []flexoplan.Order
	err := s.db.View(func(txn *badger.Txn) error {
		return scanJSON(txn, []byte(orderPrefix), func(o flexoplan.Order) {
			if o.Schedulable() && keep(o) {
				orders = append(orders, o)
			}
		})
	})
	return orders, err
}

// GetQueueItemByOrderID looks up the queue row holding an order.
func (s *BadgerStore) GetQueueItemByOrderID(ctx context.Context, orderID int) (*flexoplan.QueueRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var row *flexoplan.QueueRow
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(queueOrderKey(orderID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			rowID := int64(binary.BigEndian.Uint64(val))
			r, err := getJSON[flexoplan.QueueRow](txn, queueRowKey(rowID))
			row = r
			return err
		})
	})
	return row, err
}

// GetProductionQueueForMachine returns the machine's queue ordered by
// production order.
func (s *BadgerStore) GetProductionQueueForMachine(ctx context.Context, machineID int) ([]flexoplan.QueueRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []flexoplan.QueueRow
	err := s.db.View(func(txn *badger.Txn) error {
		var innerErr error
		scanKeys(txn, queueMachScanPrefix(machineID), func(val []byte) bool {
			rowID := int64(binary.BigEndian.Uint64(val))
			row, err := getJSON[flexoplan.QueueRow](txn, queueRowKey(rowID))
			if err != nil {
				innerErr = err
				return false
			}
			if row != nil {
				rows = append(rows, *row)
			}
			return true
		})
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ProductionOrder < rows[j].ProductionOrder })
	return rows, nil
}

// GetEnrichedQueueForMachine joins the queue with its orders, in
// production order. Rows whose order vanished are skipped.
func (s *BadgerStore) GetEnrichedQueueForMachine(ctx context.Context, machineID int) ([]flexoplan.QueueOrder, error) {
	rows, err := s.GetProductionQueueForMachine(ctx, machineID)
	if err != nil {
		return nil, err
	}
	enriched := make([]flexoplan.QueueOrder, 0, len(rows))
	for _, row := range rows {
		order, err := s.GetOrderByID(ctx, row.OrderID)
		if err != nil {
			return nil, err
		}
		if order == nil {
			continue
		}
		enriched = append(enriched, flexoplan.QueueOrder{
			Order:           *order,
			QueueRowID:      row.ID,
			ProductionOrder: row.ProductionOrder,
		})
	}
	return enriched, nil
}

// OverwriteMachineSchedule replaces a machine's queue in one badger
// transaction: readers observe either the old queue or the new one.
func (s *BadgerStore) OverwriteMachineSchedule(ctx context.Context, machineID int, rows []flexoplan.QueueRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now().UTC()
	return s.db.Update(func(txn *badger.Txn) error {
		// Delete the pre-image and its indexes.
		var staleRowIDs []int64
		scanKeys(txn, queueMachScanPrefix(machineID), func(val []byte) bool {
			staleRowIDs = append(staleRowIDs, int64(binary.BigEndian.Uint64(val)))
			return true
		})
		for _, rowID := range staleRowIDs {
			row, err := getJSON[flexoplan.QueueRow](txn, queueRowKey(rowID))
			if err != nil {
				return err
			}
			if row != nil {
				if err := txn.Delete(queueOrderKey(row.OrderID)); err != nil {
					return err
				}
			}
			if err := txn.Delete(queueRowKey(rowID)); err != nil {
				return err
			}
			if err := txn.Delete(queueMachKey(machineID, rowID)); err != nil {
				return err
			}
		}

		for i := range rows {
			rowID, err := nextRowID(txn)
			if err != nil {
				return err
			}
			row := rows[i]
			row.ID = rowID
			row.MachineID = machineID
			row.ProductionOrder = i + 1
			row.CreatedAt = now
			row.UpdatedAt = now

			if err := setJSON(txn, queueRowKey(rowID), row); err != nil {
				return err
			}
			rowIDBytes := make([]byte, 8)
			binary.BigEndian.PutUint64(rowIDBytes, uint64(rowID))
			if err := txn.Set(queueMachKey(machineID, rowID), rowIDBytes); err != nil {
				return err
			}
			if err := txn.Set(queueOrderKey(row.OrderID), rowIDBytes); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateProductionQueue bulk-updates row ranks, matching rows by their
// primary key and touching no other column.
func (s *BadgerStore) UpdateProductionQueue(ctx context.Context, updates []RankUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now().UTC()
	return s.db.Update(func(txn *badger.Txn) error {
		for _, u := range updates {
			row, err := getJSON[flexoplan.QueueRow](txn, queueRowKey(u.QueueRowID))
			if err != nil {
				return err
			}
			if row == nil {
				return fmt.Errorf("queue row %d not found", u.QueueRowID)
			}
			row.ProductionOrder = u.ProductionOrder
			row.UpdatedAt = now
			if err := setJSON(txn, queueRowKey(u.QueueRowID), *row); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateQueueDatesAndTimes bulk-updates timestamps and decomposed
// minutes, leaving production order untouched.
func (s *BadgerStore) UpdateQueueDatesAndTimes(ctx context.Context, updates []TimesUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now().UTC()
	return s.db.Update(func(txn *badger.Txn) error {
		for _, u := range updates {
			row, err := getJSON[flexoplan.QueueRow](txn, queueRowKey(u.QueueRowID))
			if err != nil {
				return err
			}
			if row == nil {
				return fmt.Errorf("queue row %d not found", u.QueueRowID)
			}
			row.ProbableDeliveryDate = u.ProbableDeliveryDate
			row.SetupMin = u.SetupMin
			row.InterLabelMin = u.InterLabelMin
			row.PrintMin = u.PrintMin
			row.BufferMin = u.BufferMin
			row.TotalMin = u.TotalMin
			row.UpdatedAt = now
			if err := setJSON(txn, queueRowKey(u.QueueRowID), *row); err != nil {
				return err
			}
		}
		return nil
	})
}

// nextRowID allocates a queue row id from the sequence key.
func nextRowID(txn *badger.Txn) (int64, error) {
	var current uint64
	item, err := txn.Get([]byte(queueSeqKey))
	if err == nil {
		err = item.Value(func(val []byte) error {
			current = binary.BigEndian.Uint64(val)
			return nil
		})
		if err != nil {
			return 0, err
		}
	} else if err != badger.ErrKeyNotFound {
		return 0, err
	}

	current++
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, current)
	if err := txn.Set([]byte(queueSeqKey), buf); err != nil {
		return 0, err
	}
	return int64(current), nil
}

// setJSON writes a JSON-encoded record.
func setJSON(txn *badger.Txn, key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return txn.Set(key, data)
}

// getJSON reads a JSON-encoded record; missing keys yield (nil, nil).
func getJSON[T any](txn *badger.Txn, key []byte) (*T, error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out T
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return &out, nil
}

// scanJSON iterates every JSON record under a prefix.
func scanJSON[T any](txn *badger.Txn, prefix []byte, visit func(T)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		var out T
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
		if err != nil {
			return fmt.Errorf("failed to decode %s: %w", it.Item().Key(), err)
		}
		visit(out)
	}
	return nil
}

// scanKeys iterates raw values under a prefix until visit returns false.
func scanKeys(txn *badger.Txn, prefix []byte, visit func(val []byte) bool) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		var keep bool
		_ = it.Item().Value(func(val []byte) error {
			keep = visit(append([]byte(nil), val...))
			return nil
		})
		if !keep {
			return
		}
	}
}
