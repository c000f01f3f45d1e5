package conflicts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockKeys(t *testing.T) {
	p := uuid.MustParse("11111111-1111-1111-1111-111111111111")

	keys := LockKeys(p, at("10:00"), at("10:30"))
	assert.Equal(t, []string{"practitioner:11111111-1111-1111-1111-111111111111:2026-02-02"}, keys)

	// An interval ending exactly at midnight stays on its day.
	midnight := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	keys = LockKeys(p, at("23:00"), midnight)
	assert.Len(t, keys, 1)

	keys = LockKeys(p, at("23:30"), midnight.Add(30*time.Minute))
	assert.Equal(t, []string{
		"practitioner:11111111-1111-1111-1111-111111111111:2026-02-02",
		"practitioner:11111111-1111-1111-1111-111111111111:2026-02-03",
	}, keys)

	assert.Len(t, LockKeys(p, at("10:00"), at("10:00")), 1)
}

func TestGuard_WithPractitionerLockCommits(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	p := uuid.New()
	key := LockKeys(p, at("10:00"), at("10:30"))[0]

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(key).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("UPDATE appointments").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = NewGuard(mock).WithPractitionerLock(context.Background(), p, at("10:00"), at("10:30"), func(ctx context.Context, q Querier) error {
		_, err := q.Exec(ctx, "UPDATE appointments SET status = 'confirmed'")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuard_RollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sentinel := errors.New("conflict found")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err = NewGuard(mock).InTx(context.Background(), func(ctx context.Context, q Querier) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.NoError(t, mock.ExpectationsWereMet())
}
