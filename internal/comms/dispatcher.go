package comms

import (
	"context"
	"time"

	"github.com/wolfman30/clinic-decision-core/internal/observability/metrics"
	"github.com/wolfman30/clinic-decision-core/pkg/logging"
)

// Sender delivers one communication over its channel.
type Sender interface {
	Send(ctx context.Context, c Communication) error
}

// DrainResult summarizes one drain pass.
type DrainResult struct {
	Sent    int `json:"sent"`
	Retried int `json:"retried"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Dispatcher polls due communications across organizations and sends them.
type Dispatcher struct {
	repo        Repository
	planner     *Planner
	sender      Sender
	metrics     *metrics.DecisionMetrics
	logger      *logging.Logger
	batchSize   int
	maxBatches  int
	maxAttempts int
	interval    time.Duration
}

// NewDispatcher creates a dispatcher over repo. planner must share repo.
func NewDispatcher(repo Repository, planner *Planner, sender Sender, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		repo:        repo,
		planner:     planner,
		sender:      sender,
		logger:      logger.With("component", "comms-dispatcher"),
		batchSize:   25,
		maxBatches:  10,
		maxAttempts: 3,
		interval:    time.Minute,
	}
}

func (d *Dispatcher) WithBatchSize(size int) *Dispatcher {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

func (d *Dispatcher) WithInterval(interval time.Duration) *Dispatcher {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

func (d *Dispatcher) WithMaxAttempts(n int) *Dispatcher {
	if n > 0 {
		d.maxAttempts = n
	}
	return d
}

func (d *Dispatcher) WithMetrics(m *metrics.DecisionMetrics) *Dispatcher {
	d.metrics = m
	return d
}

// Start drains on every tick until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	if d.repo == nil || d.sender == nil {
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.Drain(ctx); err != nil {
				d.logger.Error("dispatch drain failed", "error", err)
			}
		}
	}
}

// Drain sends due rows in batches. It stops after a short batch, after a
// batch that left rows pending for retry, or after maxBatches.
func (d *Dispatcher) Drain(ctx context.Context) (DrainResult, error) {
	var total DrainResult
	for i := 0; i < d.maxBatches; i++ {
		due, err := d.repo.ListDueAll(ctx, d.planner.now(), d.batchSize)
		if err != nil {
			return total, err
		}
		if len(due) == 0 {
			break
		}
		res := d.sendBatch(ctx, due)
		total.Sent += res.Sent
		total.Retried += res.Retried
		total.Failed += res.Failed
		total.Skipped += res.Skipped

		if len(due) < d.batchSize || res.Retried > 0 || ctx.Err() != nil {
			break
		}
	}
	if total != (DrainResult{}) {
		d.logger.Info("dispatch drain complete",
			"sent", total.Sent, "retried", total.Retried, "failed", total.Failed, "skipped", total.Skipped)
	}
	return total, nil
}

func (d *Dispatcher) sendBatch(ctx context.Context, due []Communication) DrainResult {
	var res DrainResult
	for i := range due {
		c := due[i]
		if err := d.sender.Send(ctx, c); err != nil {
			status, ferr := d.planner.recordFailure(ctx, c.ID, err, d.maxAttempts)
			if ferr != nil {
				d.logger.Warn("failed to record dispatch failure", "communication_id", c.ID, "error", ferr)
				res.Skipped++
				continue
			}
			if status == StatusFailed {
				res.Failed++
				d.metrics.ObserveDispatch(string(c.Channel), "failed")
				d.logger.Error("communication failed permanently",
					"communication_id", c.ID, "org_id", c.OrgID, "channel", c.Channel, "error", err)
			} else {
				res.Retried++
				d.metrics.ObserveDispatch(string(c.Channel), "retry")
				d.logger.Warn("communication send failed, will retry",
					"communication_id", c.ID, "org_id", c.OrgID, "channel", c.Channel, "error", err)
			}
			continue
		}
		if err := d.planner.MarkSent(ctx, c.ID); err != nil {
			// Cancelled while in flight; the message already went out.
			d.logger.Warn("failed to mark communication sent", "communication_id", c.ID, "error", err)
			res.Skipped++
			continue
		}
		res.Sent++
		d.metrics.ObserveDispatch(string(c.Channel), "sent")
	}
	return res
}
