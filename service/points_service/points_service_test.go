package points_service

import (
	"sync"
	"testing"

	"mini-app-service/database"
	"mini-app-service/models/dao"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLedger struct {
	mu      sync.Mutex
	awards  []string
	fail    bool
	block   chan struct{}
	entered chan struct{}
}

func (l *recordingLedger) AwardPoints(identity string, amount int64, reason, referenceID string) error {
	if l.entered != nil {
		l.entered <- struct{}{}
	}
	if l.block != nil {
		<-l.block
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail {
		return errors.New("ledger down")
	}
	l.awards = append(l.awards, identity+"/"+referenceID)
	return nil
}

func (l *recordingLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.awards)
}

func TestAwarderDeliversOnStop(t *testing.T) {
	ledger := &recordingLedger{}
	a := NewAwarder(ledger, 8)
	a.Start()

	a.Award("0xabc", 100, ReasonAppSubmission, "https://a.example")
	a.Award("0xabc", 100, ReasonAppSubmission, "https://b.example")
	a.Stop()

	assert.Equal(t, 2, ledger.count())

	// awards after stop are dropped, never panic
	assert.NotPanics(t, func() { a.Award("0xabc", 1, ReasonAppSubmission, "late") })
	a.Stop()
}

func TestAwarderNeverBlocks(t *testing.T) {
	ledger := &recordingLedger{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	a := NewAwarder(ledger, 1)
	a.Start()

	a.Award("0xabc", 1, ReasonAppSubmission, "first")
	<-ledger.entered // worker holds "first"

	a.Award("0xabc", 1, ReasonAppSubmission, "queued")
	a.Award("0xabc", 1, ReasonAppSubmission, "dropped")

	close(ledger.block)
	a.Stop()
	assert.Equal(t, 2, ledger.count())
}

func TestAwarderSurvivesLedgerFailure(t *testing.T) {
	ledger := &recordingLedger{fail: true}
	a := NewAwarder(ledger, 4)
	a.Start()
	a.Award("0xabc", 1, ReasonAppSubmission, "x")
	a.Stop()
	assert.Equal(t, 0, ledger.count())
}

func TestPointsServiceBalance(t *testing.T) {
	db, err := database.NewPebbleDatabase(&database.PebbleConfig{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewPointsService(dao.NewPointsDAO(db))
	require.NoError(t, svc.AwardPoints("fid:1", 100, ReasonAppSubmission, "https://a.example"))
	require.NoError(t, svc.AwardPoints("fid:1", 100, ReasonAppSubmission, "https://b.example"))
	require.NoError(t, svc.AwardPoints("fid:2", 5, ReasonAppSubmission, "https://c.example"))

	total, entries, err := svc.Balance("fid:1")
	require.NoError(t, err)
	assert.Equal(t, int64(200), total)
	assert.Len(t, entries, 2)

	total, entries, err = svc.Balance("fid:404")
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, entries)
}
