package database

import (
	"sync"
	"testing"
	"time"

	model "mini-app-service/models"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) Database {
	t.Helper()
	db, err := NewPebbleDatabase(&PebbleConfig{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewPebbleDatabaseRejectsWrongConfig(t *testing.T) {
	_, err := NewPebbleDatabase(&GormConfig{})
	assert.Error(t, err)
}

func TestDeveloperCreateIsUnique(t *testing.T) {
	db := openTestDB(t)

	dev := &model.Developer{ID: "d1", IdentityKey: "0xabc", CreatedAt: time.Now()}
	require.NoError(t, db.CreateDeveloper(dev))

	err := db.CreateDeveloper(&model.Developer{ID: "d2", IdentityKey: "0xabc"})
	assert.True(t, errors.Is(err, ErrAlreadyExists))

	got, err := db.GetDeveloperByIdentity("0xabc")
	require.NoError(t, err)
	assert.Equal(t, "d1", got.ID)

	_, err = db.GetDeveloperByIdentity("0xdef")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestConcurrentDeveloperCreateSingleWinner(t *testing.T) {
	db := openTestDB(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := db.CreateDeveloper(&model.Developer{ID: string(rune('a' + i)), IdentityKey: "fid:1"})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestUpdateDeveloperAbortsOnError(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.CreateDeveloper(&model.Developer{ID: "d1", IdentityKey: "0xabc"}))

	boom := errors.New("boom")
	_, err := db.UpdateDeveloper("d1", func(dev *model.Developer) error {
		dev.WalletVerified = true
		return boom
	})
	assert.True(t, errors.Is(err, boom))

	got, err := db.GetDeveloperByID("d1")
	require.NoError(t, err)
	assert.False(t, got.WalletVerified)

	updated, err := db.UpdateDeveloper("d1", func(dev *model.Developer) error {
		dev.WalletVerified = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, updated.WalletVerified)

	_, err = db.UpdateDeveloper("missing", func(dev *model.Developer) error { return nil })
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestAppCreateUpdateAndList(t *testing.T) {
	db := openTestDB(t)
	base := time.Now()

	for i, url := range []string{"https://a.example", "https://b.example", "https://c.example"} {
		app := &model.App{
			ID:               url,
			URL:              url,
			Status:           model.AppStatusPending,
			OwnerDeveloperID: "d1",
			CreatedAt:        base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, db.CreateApp(app))
	}
	require.NoError(t, db.CreateApp(&model.App{URL: "https://z.example", Status: model.AppStatusApproved, OwnerDeveloperID: "d2", CreatedAt: base}))

	err := db.CreateApp(&model.App{URL: "https://a.example", OwnerDeveloperID: "d2"})
	assert.True(t, errors.Is(err, ErrAlreadyExists))

	// owner and url cannot be changed through a mutation
	app, err := db.UpdateApp("https://a.example", func(app *model.App) error {
		app.Status = model.AppStatusApproved
		app.OwnerDeveloperID = "d9"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "d1", app.OwnerDeveloperID)
	assert.Equal(t, model.AppStatusApproved, app.Status)

	page, next, err := db.ListAppsByOwnerWithCursor("d1", 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "https://c.example", page[0].URL)
	assert.Equal(t, "https://b.example", page[1].URL)
	assert.Equal(t, int64(2), next)

	page, next, err = db.ListAppsByOwnerWithCursor("d1", next, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "https://a.example", page[0].URL)
	assert.Equal(t, int64(3), next)

	pending, _, err := db.ListAppsByStatusWithCursor(model.AppStatusPending, 0, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "https://b.example", pending[0].URL)

	count, err := db.CountApps()
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestPointsEntries(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	require.NoError(t, db.CreatePointsEntry(&model.PointsEntry{ID: "p1", Identity: "0xabc", Amount: 100, CreatedAt: now}))
	require.NoError(t, db.CreatePointsEntry(&model.PointsEntry{ID: "p2", Identity: "0xabc", Amount: 50, CreatedAt: now.Add(time.Second)}))
	require.NoError(t, db.CreatePointsEntry(&model.PointsEntry{ID: "p3", Identity: "0xabcd", Amount: 7, CreatedAt: now}))

	entries, err := db.ListPointsEntries("0xabc")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "p2", entries[0].ID)
}
