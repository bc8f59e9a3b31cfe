package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/ariefcatur/go-marketplace-checkout/internal/saga"
)

// Saga step names as written to saga_logs.
const (
	StepReserveStock    = "reserve_stock"
	StepCompensateStock = "compensate_stock"
	StepCreateOrder     = "create_order"
	StepCancelOrder     = "cancel_order"
	StepConfirmOrder    = "confirm_order"
)

// Ledger mengurangi dan mengembalikan stok. Tidak pakai FOR UPDATE: satu
// conditional UPDATE per baris sudah cukup untuk mencegah oversell.
type Ledger struct{}

// Restoration is the data of a compensate_stock entry.
type Restoration struct {
	Items   ReservedItems `json:"items"`
	Skipped string        `json:"skipped,omitempty"`
}

// Reserve decrements every item or none. On the first item whose guard fails,
// items decremented earlier in this call are added back before returning
// ErrInsufficientStock.
func (Ledger) Reserve(ctx context.Context, tx StockTx, items []ReserveItem) (ReservedItems, error) {
	reserved := make(ReservedItems, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("product %d qty %d: %w", it.ProductID, it.Quantity, ErrInvalidInput)
		}
		remaining, ok, err := tx.DecrementStock(ctx, it.ProductID, it.TenantID, it.Quantity)
		if err == nil && ok {
			reserved = append(reserved, ReservedItem{ProductID: it.ProductID, Quantity: it.Quantity, ResultingStock: remaining})
			continue
		}
		if rerr := undo(ctx, tx, reserved); rerr != nil {
			return nil, fmt.Errorf("undo partial reservation: %w", rerr)
		}
		if err != nil {
			return nil, fmt.Errorf("reserve product %d: %w", it.ProductID, err)
		}
		return nil, fmt.Errorf("product %d: %w", it.ProductID, ErrInsufficientStock)
	}
	return reserved, nil
}

// Restore adds back what the latest reserve_stock entry of sagaID recorded.
// It reads only the log, so it works outside the process that reserved.
// A compensate_stock entry newer than the reservation makes it a no-op, and so
// does a confirm_order that was not cancelled afterwards.
func (Ledger) Restore(ctx context.Context, tx StockTx, sagaID string) (Restoration, error) {
	entries, err := tx.Entries(ctx, sagaID)
	if err != nil {
		return Restoration{}, fmt.Errorf("read saga log: %w", err)
	}
	res, found := saga.Latest(entries, StepReserveStock, saga.StatusCompleted)
	if !found {
		return Restoration{Items: ReservedItems{}, Skipped: "nothing reserved"}, nil
	}
	if comp, done := saga.Latest(entries, StepCompensateStock, saga.StatusCompleted); done && comp.Seq > res.Seq {
		log.Printf("saga=%s stock already restored at seq %d", sagaID, comp.Seq)
		return Restoration{Items: ReservedItems{}, Skipped: "already restored"}, nil
	}
	// stok sudah terjual ke order yang confirmed, jangan dikembalikan
	if conf, ok := saga.Latest(entries, StepConfirmOrder, saga.StatusCompleted); ok && conf.Seq > res.Seq {
		if cancel, cancelled := saga.Latest(entries, StepCancelOrder, saga.StatusCompleted); !cancelled || cancel.Seq < conf.Seq {
			log.Printf("saga=%s order confirmed at seq %d, stock not restored", sagaID, conf.Seq)
			return Restoration{Items: ReservedItems{}, Skipped: "order confirmed"}, nil
		}
	}

	var items ReservedItems
	if err := json.Unmarshal(res.Data, &items); err != nil {
		return Restoration{}, fmt.Errorf("decode reserve_stock entry %d: %w", res.Seq, err)
	}
	restored := make(ReservedItems, 0, len(items))
	for _, it := range items {
		stock, err := tx.IncrementStock(ctx, it.ProductID, it.Quantity)
		if err != nil {
			return Restoration{}, fmt.Errorf("restore product %d: %w", it.ProductID, err)
		}
		restored = append(restored, ReservedItem{ProductID: it.ProductID, Quantity: it.Quantity, ResultingStock: stock})
	}
	return Restoration{Items: restored}, nil
}

func undo(ctx context.Context, tx StockTx, reserved ReservedItems) error {
	for i := len(reserved) - 1; i >= 0; i-- {
		if _, err := tx.IncrementStock(ctx, reserved[i].ProductID, reserved[i].Quantity); err != nil {
			return err
		}
	}
	return nil
}

// RestoreSaga runs compensate_stock as a one-step saga so the outcome lands in the log.
// Used by operators (sagactl) against sagas that did not compensate themselves.
func RestoreSaga(ctx context.Context, store Store, runner *saga.Runner, sagaID string) (Restoration, error) {
	var out Restoration
	err := store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		return runner.Run(ctx, saga.Saga{
			ID:      sagaID,
			Log:     tx,
			Isolate: tx.Savepoint,
			Steps: []saga.Step{{
				Name: StepCompensateStock,
				Action: func(ctx context.Context) (any, error) {
					r, err := Ledger{}.Restore(ctx, tx, sagaID)
					out = r
					return r, err
				},
			}},
		})
	})
	return out, err
}
