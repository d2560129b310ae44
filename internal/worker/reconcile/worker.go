package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/services/ordersvc"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/worker/poller"
)

type service interface {
	Reconcile(ctx context.Context) (ordersvc.ReconcileReport, error)
}

// Worker periodically sweeps orders stuck waiting for payment verification.
type Worker struct {
	*poller.Loop
	service  service
	interval time.Duration
}

func NewWorker(s service, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = time.Minute
	}

	w := &Worker{service: s, interval: interval}
	w.Loop = poller.New("reconcile", interval, w.sweep)

	return w
}

// sweep runs one pass bounded by the interval so passes never overlap.
func (w *Worker) sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	if _, err := w.service.Reconcile(ctx); err != nil {
		slog.Error("Reconciliation pass failed", "error", err)
	}
}
