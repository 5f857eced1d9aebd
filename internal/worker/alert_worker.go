// Package worker runs the background side of the app: budget re-checks
// driven by broker messages, periodic exchange-rate refreshes, and
// spreadsheet exports.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"budgetblu/internal/amqp"
	"budgetblu/internal/budget"
	"budgetblu/internal/log"

	"golang.org/x/sync/errgroup"
)

// SummaryExporter appends a user's budget statuses to an external sheet.
type SummaryExporter interface {
	AppendSummary(ctx context.Context, userID string, statuses []budget.Status) error
}

// AlertWorker consumes ledger mutation messages and re-evaluates the
// affected user's budgets, raising alerts and exporting summaries.
type AlertWorker struct {
	budgets  *budget.Tracker
	exporter SummaryExporter // nil disables exports
	logger   *log.Logger

	// dirty collects users touched since the last export sweep
	mu    sync.Mutex
	dirty map[string]struct{}
}

func NewAlertWorker(budgets *budget.Tracker, exporter SummaryExporter, logger *log.Logger) *AlertWorker {
	return &AlertWorker{
		budgets:  budgets,
		exporter: exporter,
		logger:   logger.WithComponent(log.ComponentWorker),
		dirty:    make(map[string]struct{}),
	}
}

// HandleMutation processes one broker message: the user's budgets are
// re-checked immediately; the export happens on the periodic sweep.
func (w *AlertWorker) HandleMutation(msg *amqp.MutationMessage) error {
	if msg.UserID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := w.budgets.CheckAll(ctx, msg.UserID); err != nil {
		return fmt.Errorf("check budgets for user %s: %w", msg.UserID, err)
	}

	w.mu.Lock()
	w.dirty[msg.UserID] = struct{}{}
	w.mu.Unlock()

	w.logger.Debug("budget check complete",
		log.FieldUserID, msg.UserID, "op", msg.Op, log.FieldTxID, msg.TxID)
	return nil
}

// ExportDirty appends a budget summary for every user touched since the
// previous sweep. A failed export re-marks the user for the next one.
func (w *AlertWorker) ExportDirty(ctx context.Context) error {
	if w.exporter == nil {
		return nil
	}

	w.mu.Lock()
	users := make([]string, 0, len(w.dirty))
	for id := range w.dirty {
		users = append(users, id)
	}
	w.dirty = make(map[string]struct{})
	w.mu.Unlock()

	for _, userID := range users {
		statuses, err := w.budgets.StatusAll(ctx, userID)
		if err != nil {
			w.remark(userID)
			return fmt.Errorf("status for user %s: %w", userID, err)
		}
		if len(statuses) == 0 {
			continue
		}
		if err := w.exporter.AppendSummary(ctx, userID, statuses); err != nil {
			w.remark(userID)
			return fmt.Errorf("export summary for user %s: %w", userID, err)
		}
		w.logger.Info("budget summary exported",
			log.FieldUserID, userID, "rows", len(statuses))
	}
	return nil
}

func (w *AlertWorker) remark(userID string) {
	w.mu.Lock()
	w.dirty[userID] = struct{}{}
	w.mu.Unlock()
}

// RatesRefresher periodically refreshes the exchange-rate table.
type RatesRefresher interface {
	RefreshIfStale(ctx context.Context) error
}

// Run drives the worker loops until ctx is cancelled: broker consumption,
// the periodic export sweep, and the rates refresher.
func Run(ctx context.Context, client *amqp.Client, w *AlertWorker, rates RatesRefresher, exportEvery, refreshEvery time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := client.ConsumeMutations(ctx, w.HandleMutation)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	g.Go(func() error {
		ticker := time.NewTicker(exportEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := w.ExportDirty(ctx); err != nil {
					w.logger.Error("export sweep failed", log.FieldError, err)
				}
			}
		}
	})

	if rates != nil {
		g.Go(func() error {
			ticker := time.NewTicker(refreshEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := rates.RefreshIfStale(ctx); err != nil {
						w.logger.Warn("rates refresh failed", log.FieldError, err)
					}
				}
			}
		})
	}

	return g.Wait()
}
