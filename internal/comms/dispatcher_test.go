package comms

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-decision-core/internal/observability/metrics"
)

type fakeSender struct {
	mu      sync.Mutex
	sent    []uuid.UUID
	failFor map[string]error
}

func (s *fakeSender) Send(_ context.Context, c Communication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failFor[c.Recipient]; ok {
		return err
	}
	s.sent = append(s.sent, c.ID)
	return nil
}

func TestDispatcher_DrainSendsDueOnly(t *testing.T) {
	p, repo := newTestPlanner()
	ctx := context.Background()
	orgID := uuid.New()

	items, err := p.Schedule(ctx, request(orgID, scheduleNow.Add(time.Hour), 2*time.Hour, 30*time.Minute))
	require.NoError(t, err)

	sender := &fakeSender{}
	d := NewDispatcher(repo, p, sender, nil).WithMetrics(metrics.NewDecisionMetrics(prometheus.NewRegistry()))
	res, err := d.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, DrainResult{Sent: 1}, res)
	assert.Equal(t, []uuid.UUID{items[0].ID}, sender.sent)

	got, err := p.Get(ctx, orgID, items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, got.Status)
	require.NotNil(t, got.SentAt)

	got, err = p.Get(ctx, orgID, items[1].ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
}

func TestDispatcher_RetriesThenFails(t *testing.T) {
	p, repo := newTestPlanner()
	ctx := context.Background()
	orgID := uuid.New()

	req := request(orgID, scheduleNow, time.Hour)
	req.Recipient = "+15559990000"
	items, err := p.Schedule(ctx, req)
	require.NoError(t, err)

	sender := &fakeSender{failFor: map[string]error{"+15559990000": errors.New("queue unavailable")}}
	d := NewDispatcher(repo, p, sender, nil).WithMaxAttempts(2)

	res, err := d.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Retried)

	res, err = d.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)

	got, err := p.Get(ctx, orgID, items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, 2, got.Attempts)
	assert.Equal(t, "queue unavailable", got.LastError)

	res, err = d.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, DrainResult{}, res)
}

func TestDispatcher_DrainsMultipleBatches(t *testing.T) {
	p, repo := newTestPlanner()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := p.Schedule(ctx, request(uuid.New(), scheduleNow, time.Duration(i+1)*time.Hour))
		require.NoError(t, err)
	}

	sender := &fakeSender{}
	res, err := NewDispatcher(repo, p, sender, nil).WithBatchSize(2).Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Sent)
	assert.Len(t, sender.sent, 5)
}

func TestDispatcher_StartStopsOnCancel(t *testing.T) {
	p, repo := newTestPlanner()
	ctx, cancel := context.WithCancel(context.Background())
	_, err := p.Schedule(ctx, request(uuid.New(), scheduleNow, time.Hour))
	require.NoError(t, err)

	sender := &fakeSender{}
	d := NewDispatcher(repo, p, sender, nil).WithInterval(5 * time.Millisecond)
	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.sent) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}
