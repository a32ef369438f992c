package region

import (
	"context"
	"fmt"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func insertFor(g Geometry) Statement {
	return Statement{SQL: "INSERT INTO temporal.clip_target SELECT $1::bytea", Args: []any{g.EWKB}}
}

func TestLoop_ContinuesAfterFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	p1 := square(t, 0, 0, 1, 1)
	p2 := square(t, 1, 0, 2, 1)
	set := Set{{Index: 1, EWKB: p1}, {Index: 2, EWKB: p2}}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO temporal.clip_target").WithArgs(p1).
		WillReturnError(fmt.Errorf("ERROR: invalid geometry"))
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO temporal.clip_target").WithArgs(p2).
		WillReturnResult(pgxmock.NewResult("INSERT", 12))
	mock.ExpectCommit()

	core, logs := observer.New(zapcore.InfoLevel)
	res, err := Loop(context.Background(), mock, set, insertFor, zap.New(core))
	require.NoError(t, err)

	assert.Equal(t, LoopResult{Succeeded: 1, Failed: 1}, res)
	assert.NoError(t, mock.ExpectationsWereMet())

	errs := logs.FilterMessage("geometry clip failed").All()
	require.Len(t, errs, 1)
	assert.Equal(t, zapcore.ErrorLevel, errs[0].Level)
	assert.Equal(t, int64(1), errs[0].ContextMap()["geom"])

	timings := logs.FilterMessage("geometry processed").All()
	require.Len(t, timings, 2)
	for i, e := range timings {
		m := e.ContextMap()
		assert.Equal(t, int64(i+1), m["geom"])
		assert.Equal(t, int64(2), m["total"])
		assert.Contains(t, m, "elapsed")
	}
}

func TestLoop_AllSucceed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	set := Set{{Index: 1, EWKB: []byte{1}}, {Index: 2, EWKB: []byte{2}}, {Index: 3, EWKB: []byte{3}}}
	for _, g := range set {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO temporal.clip_target").WithArgs(g.EWKB).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()
	}

	res, err := Loop(context.Background(), mock, set, insertFor, nil)
	require.NoError(t, err)
	assert.Equal(t, LoopResult{Succeeded: 3}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoop_BeginFailureCountsAsFailed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	set := Set{{Index: 1, EWKB: []byte{1}}}
	mock.ExpectBegin().WillReturnError(fmt.Errorf("connection reset"))

	res, err := Loop(context.Background(), mock, set, insertFor, nil)
	require.NoError(t, err)
	assert.Equal(t, LoopResult{Failed: 1}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoop_CommitFailureCountsAsFailed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	set := Set{{Index: 1, EWKB: []byte{1}}}
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO temporal.clip_target").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit().WillReturnError(fmt.Errorf("serialization failure"))

	res, err := Loop(context.Background(), mock, set, insertFor, nil)
	require.NoError(t, err)
	assert.Equal(t, LoopResult{Failed: 1}, res)
}

func TestLoop_Cancelled(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = Loop(ctx, mock, Set{{Index: 1, EWKB: []byte{1}}}, insertFor, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loop cancelled")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoop_RollbackFailureKeepsLoggerFields(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	p1 := square(t, 0, 0, 1, 1)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO temporal.clip_target").WithArgs(p1).
		WillReturnError(fmt.Errorf("ERROR: invalid geometry"))
	mock.ExpectRollback().WillReturnError(fmt.Errorf("conn closed"))

	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core).With(zap.String("component", "transit.prepare"), zap.String("pass", "remaining"))

	res, err := Loop(context.Background(), mock, Set{{Index: 1, EWKB: p1}}, insertFor, log)
	require.NoError(t, err)
	assert.Equal(t, LoopResult{Failed: 1}, res)
	assert.NoError(t, mock.ExpectationsWereMet())

	warns := logs.FilterMessage("rollback failed").All()
	require.Len(t, warns, 1)
	assert.Equal(t, zapcore.WarnLevel, warns[0].Level)
	m := warns[0].ContextMap()
	assert.Equal(t, "transit.prepare", m["component"])
	assert.Equal(t, "remaining", m["pass"])
}
