package decisionqueue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-decision-core/internal/apperr"
)

func newTestService() *Service {
	return NewService(NewInMemoryRepository(), nil)
}

func TestEnqueue_IsIdempotentWhilePending(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	orgID, resourceID := uuid.New(), uuid.New()

	first, err := svc.Enqueue(ctx, orgID, "appointment", resourceID, "daily limit reached")
	require.NoError(t, err)
	second, err := svc.Enqueue(ctx, orgID, "appointment", resourceID, "outside business hours")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "outside business hours", second.Reason)

	pending, err := svc.ListPending(ctx, orgID, Filter{})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "outside business hours", pending[0].Reason)
}

func TestEnqueue_AfterResolutionCreatesNewEntry(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	orgID, resourceID := uuid.New(), uuid.New()

	first, err := svc.Enqueue(ctx, orgID, "appointment", resourceID, "scheduling conflict")
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, orgID, first.ID, "extend", "", "ops@clinic.test")
	require.NoError(t, err)

	second, err := svc.Enqueue(ctx, orgID, "appointment", resourceID, "scheduling conflict")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestEnqueue_Validation(t *testing.T) {
	svc := newTestService()
	_, err := svc.Enqueue(context.Background(), uuid.Nil, "appointment", uuid.New(), "x")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = svc.Enqueue(context.Background(), uuid.New(), " ", uuid.New(), "x")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestResolve_IsTerminal(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	orgID := uuid.New()

	entry, err := svc.Enqueue(ctx, orgID, "referral", uuid.New(), "auto-accept disabled")
	require.NoError(t, err)

	resolved, err := svc.Resolve(ctx, orgID, entry.ID, "cancel", "  duplicate referral ", "dr.smith")
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, resolved.Status)
	assert.Equal(t, DecisionCancel, resolved.Resolution)
	assert.Equal(t, "duplicate referral", resolved.ResolutionNote)
	assert.Equal(t, "dr.smith", resolved.ResolvedBy)
	require.NotNil(t, resolved.ResolvedAt)

	for _, d := range []string{"cancel", "approve", "extend"} {
		_, err = svc.Resolve(ctx, orgID, entry.ID, d, "", "dr.smith")
		assert.True(t, errors.Is(err, apperr.ErrInvalidState), "decision %s", d)
	}

	count, err := svc.CountPending(ctx, orgID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestResolve_Errors(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	orgID := uuid.New()

	_, err := svc.Resolve(ctx, orgID, uuid.New(), "approve", "", "x")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Equal(t, 404, apperr.HTTPStatus(err))

	entry, err := svc.Enqueue(ctx, orgID, "appointment", uuid.New(), "type excluded")
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, orgID, entry.ID, "maybe", "", "x")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	// Entries are scoped to their organization.
	_, err = svc.Resolve(ctx, uuid.New(), entry.ID, "approve", "", "x")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestResolve_ConcurrentCallsHaveOneWinner(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	orgID := uuid.New()

	entry, err := svc.Enqueue(ctx, orgID, "appointment", uuid.New(), "scheduling conflict")
	require.NoError(t, err)

	const callers = 8
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		successes    int
		invalidState int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Resolve(ctx, orgID, entry.ID, "approve", "", "ops")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if errors.Is(err, apperr.ErrInvalidState) {
				invalidState++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, invalidState)
}

func TestResolveBulk_CountsPartialFailures(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	orgID := uuid.New()

	a, err := svc.Enqueue(ctx, orgID, "appointment", uuid.New(), "daily limit reached")
	require.NoError(t, err)
	b, err := svc.Enqueue(ctx, orgID, "appointment", uuid.New(), "daily limit reached")
	require.NoError(t, err)
	c, err := svc.Enqueue(ctx, orgID, "appointment", uuid.New(), "daily limit reached")
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, orgID, c.ID, "reject", "", "ops")
	require.NoError(t, err)

	result, err := svc.ResolveBulk(ctx, orgID, []uuid.UUID{a.ID, uuid.New(), b.ID, c.ID}, "send_anyway", "", "ops")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Resolved)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Entries, 2)
	assert.Equal(t, a.ID, result.Entries[0].ID)
	assert.Equal(t, b.ID, result.Entries[1].ID)
}

func TestResolveBulk_InvalidDecision(t *testing.T) {
	svc := newTestService()
	_, err := svc.ResolveBulk(context.Background(), uuid.New(), []uuid.UUID{uuid.New()}, "later", "", "ops")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestListPending_FIFOAndFilter(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	orgID := uuid.New()

	first, err := svc.Enqueue(ctx, orgID, "appointment", uuid.New(), "one")
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, orgID, "referral", uuid.New(), "two")
	require.NoError(t, err)
	third, err := svc.Enqueue(ctx, orgID, "appointment", uuid.New(), "three")
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, uuid.New(), "appointment", uuid.New(), "other org")
	require.NoError(t, err)

	all, err := svc.ListPending(ctx, orgID, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "one", all[0].Reason)
	assert.Equal(t, "two", all[1].Reason)
	assert.Equal(t, "three", all[2].Reason)

	appts, err := svc.ListPending(ctx, orgID, Filter{ResourceType: "appointment"})
	require.NoError(t, err)
	require.Len(t, appts, 2)
	assert.Equal(t, first.ID, appts[0].ID)
	assert.Equal(t, third.ID, appts[1].ID)

	limited, err := svc.ListPending(ctx, orgID, Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestParseDecision(t *testing.T) {
	d, err := ParseDecision(" Send_Anyway ")
	require.NoError(t, err)
	assert.Equal(t, DecisionSendAnyway, d)
	assert.True(t, d.Commits())
	assert.True(t, DecisionCancel.Rejects())
	assert.False(t, DecisionExtend.Commits())
	assert.False(t, DecisionExtend.Rejects())

	_, err = ParseDecision("")
	assert.Error(t, err)
}
