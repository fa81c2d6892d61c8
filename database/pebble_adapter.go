package database

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"sync"

	model "mini-app-service/models"

	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog/log"
)

// PebbleDatabase PebbleDB database implementation with multiple collections
type PebbleDatabase struct {
	collections map[string]*pebble.DB // Map of collection name to PebbleDB instance

	locks keyLocks
}

// PebbleConfig PebbleDB configuration
type PebbleConfig struct {
	DataDir string
}

// Collection names and their key-value formats
const (
	// Developer collections
	collectionDeveloper         = "developer"          // key: {id}, value: JSON(Developer)
	collectionDeveloperIdentity = "developer_identity" // key: {identity_key}, value: {id}

	// App collections
	collectionApp      = "app"       // key: {url}, value: JSON(App)
	collectionAppOwner = "app_owner" // key: {owner_id}:{reverse_created}:{url}, value: {url}

	// Points ledger
	collectionPoints = "points" // key: {identity}:{reverse_created}:{id}, value: JSON(PointsEntry)
)

// NewPebbleDatabase create PebbleDB database instance with multiple collections
func NewPebbleDatabase(config interface{}) (Database, error) {
	cfg, ok := config.(*PebbleConfig)
	if !ok {
		return nil, fmt.Errorf("invalid PebbleDB config type")
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", cfg.DataDir, err)
	}

	collectionNames := []string{
		collectionDeveloper,
		collectionDeveloperIdentity,
		collectionApp,
		collectionAppOwner,
		collectionPoints,
	}

	collections := make(map[string]*pebble.DB)
	for _, name := range collectionNames {
		collectionPath := filepath.Join(cfg.DataDir, "store_db", name)

		db, err := pebble.Open(collectionPath, &pebble.Options{})
		if err != nil {
			for _, openedDB := range collections {
				openedDB.Close()
			}
			return nil, fmt.Errorf("failed to open collection %s at %s: %w", name, collectionPath, err)
		}
		collections[name] = db
		log.Debug().Str("collection", name).Str("path", collectionPath).Msg("collection opened")
	}

	log.Info().Str("data_dir", cfg.DataDir).Int("collections", len(collections)).Msg("PebbleDB connected")
	return &PebbleDatabase{collections: collections}, nil
}

// reverseTimestampKey sorts newer records first under a prefix
func reverseTimestampKey(unixNano int64) string {
	return fmt.Sprintf("%019d", int64(^uint64(0)>>1)-unixNano)
}

func (p *PebbleDatabase) getJSON(collection, key string, v interface{}) error {
	data, closer, err := p.collections[collection].Get([]byte(key))
	if err != nil {
		if err == pebble.ErrNotFound {
			return ErrNotFound
		}
		return err
	}
	defer closer.Close()
	return json.Unmarshal(data, v)
}

func (p *PebbleDatabase) setJSON(collection, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.collections[collection].Set([]byte(key), data, pebble.Sync)
}

func (p *PebbleDatabase) exists(collection, key string) (bool, error) {
	_, closer, err := p.collections[collection].Get([]byte(key))
	if err != nil {
		if err == pebble.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	closer.Close()
	return true, nil
}

// Developer operations

func (p *PebbleDatabase) CreateDeveloper(dev *model.Developer) error {
	unlock := p.locks.lock("identity:" + dev.IdentityKey)
	defer unlock()

	taken, err := p.exists(collectionDeveloperIdentity, dev.IdentityKey)
	if err != nil {
		return err
	}
	if taken {
		return ErrAlreadyExists
	}

	if err := p.setJSON(collectionDeveloper, dev.ID, dev); err != nil {
		return err
	}
	return p.collections[collectionDeveloperIdentity].Set([]byte(dev.IdentityKey), []byte(dev.ID), pebble.Sync)
}

func (p *PebbleDatabase) GetDeveloperByID(id string) (*model.Developer, error) {
	var dev model.Developer
	if err := p.getJSON(collectionDeveloper, id, &dev); err != nil {
		return nil, err
	}
	return &dev, nil
}

func (p *PebbleDatabase) GetDeveloperByIdentity(identityKey string) (*model.Developer, error) {
	data, closer, err := p.collections[collectionDeveloperIdentity].Get([]byte(identityKey))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	id := string(data)
	closer.Close()

	return p.GetDeveloperByID(id)
}

func (p *PebbleDatabase) UpdateDeveloper(id string, fn DeveloperMutation) (*model.Developer, error) {
	unlock := p.locks.lock("developer:" + id)
	defer unlock()

	dev, err := p.GetDeveloperByID(id)
	if err != nil {
		return nil, err
	}
	if err := fn(dev); err != nil {
		return nil, err
	}
	if err := p.setJSON(collectionDeveloper, dev.ID, dev); err != nil {
		return nil, err
	}
	return dev, nil
}

// App operations

func (p *PebbleDatabase) CreateApp(app *model.App) error {
	unlock := p.locks.lock("app:" + app.URL)
	defer unlock()

	taken, err := p.exists(collectionApp, app.URL)
	if err != nil {
		return err
	}
	if taken {
		return ErrAlreadyExists
	}

	if err := p.setJSON(collectionApp, app.URL, app); err != nil {
		return err
	}

	ownerKey := app.OwnerDeveloperID + ":" + reverseTimestampKey(app.CreatedAt.UnixNano()) + ":" + app.URL
	return p.collections[collectionAppOwner].Set([]byte(ownerKey), []byte(app.URL), pebble.Sync)
}

func (p *PebbleDatabase) GetAppByURL(url string) (*model.App, error) {
	var app model.App
	if err := p.getJSON(collectionApp, url, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

func (p *PebbleDatabase) UpdateApp(url string, fn AppMutation) (*model.App, error) {
	unlock := p.locks.lock("app:" + url)
	defer unlock()

	app, err := p.GetAppByURL(url)
	if err != nil {
		return nil, err
	}
	owner := app.OwnerDeveloperID
	if err := fn(app); err != nil {
		return nil, err
	}
	// ownership and key are immutable
	app.URL = url
	app.OwnerDeveloperID = owner

	if err := p.setJSON(collectionApp, url, app); err != nil {
		return nil, err
	}
	return app, nil
}

// paginateApps slices an already sorted list by cursor+size.
func paginateApps(apps []*model.App, cursor int64, size int) ([]*model.App, int64) {
	if cursor < 0 {
		cursor = 0
	}
	if size <= 0 {
		size = 20
	}

	start := int(cursor)
	if start >= len(apps) {
		return []*model.App{}, cursor
	}

	end := start + size
	if end > len(apps) {
		end = len(apps)
	}

	paged := apps[start:end]
	return paged, cursor + int64(len(paged))
}

func (p *PebbleDatabase) ListAppsByOwnerWithCursor(developerID string, cursor int64, size int) ([]*model.App, int64, error) {
	prefix := developerID + ":"

	// key format: owner_id:reverse_created:url, newest first
	iter, err := p.collections[collectionAppOwner].NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: []byte(prefix + "~"),
	})
	if err != nil {
		return nil, 0, err
	}
	defer iter.Close()

	apps := make([]*model.App, 0)
	for iter.First(); iter.Valid(); iter.Next() {
		app, err := p.GetAppByURL(string(iter.Value()))
		if err != nil {
			continue
		}
		apps = append(apps, app)
	}

	paged, nextCursor := paginateApps(apps, cursor, size)
	return paged, nextCursor, nil
}

func (p *PebbleDatabase) ListAppsByStatusWithCursor(status model.AppStatus, cursor int64, size int) ([]*model.App, int64, error) {
	iter, err := p.collections[collectionApp].NewIter(nil)
	if err != nil {
		return nil, 0, err
	}
	defer iter.Close()

	apps := make([]*model.App, 0)
	for iter.First(); iter.Valid(); iter.Next() {
		var app model.App
		if err := json.Unmarshal(iter.Value(), &app); err != nil {
			continue
		}
		if status != "" && app.Status != status {
			continue
		}
		apps = append(apps, &app)
	}

	// review queue: oldest submissions first
	sort.Slice(apps, func(i, j int) bool {
		if apps[i].CreatedAt.Equal(apps[j].CreatedAt) {
			return apps[i].URL < apps[j].URL
		}
		return apps[i].CreatedAt.Before(apps[j].CreatedAt)
	})

	paged, nextCursor := paginateApps(apps, cursor, size)
	return paged, nextCursor, nil
}

func (p *PebbleDatabase) CountApps() (int64, error) {
	iter, err := p.collections[collectionApp].NewIter(nil)
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	var count int64
	for iter.First(); iter.Valid(); iter.Next() {
		count++
	}
	return count, nil
}

// Points ledger operations

func (p *PebbleDatabase) CreatePointsEntry(entry *model.PointsEntry) error {
	key := entry.Identity + ":" + reverseTimestampKey(entry.CreatedAt.UnixNano()) + ":" + entry.ID
	return p.setJSON(collectionPoints, key, entry)
}

func (p *PebbleDatabase) ListPointsEntries(identity string) ([]*model.PointsEntry, error) {
	prefix := identity + ":"
	iter, err := p.collections[collectionPoints].NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: []byte(prefix + "~"),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	entries := make([]*model.PointsEntry, 0)
	for iter.First(); iter.Valid(); iter.Next() {
		var entry model.PointsEntry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			continue
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

// Close close all database connections
func (p *PebbleDatabase) Close() error {
	var lastErr error
	for name, db := range p.collections {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Str("collection", name).Msg("failed to close collection")
			lastErr = err
		}
	}
	return lastErr
}

// keyLocks striped mutexes serializing read-modify-write on a single key
type keyLocks struct {
	stripes [64]sync.Mutex
}

func (k *keyLocks) lock(key string) func() {
	h := fnv.New32a()
	h.Write([]byte(key))
	m := &k.stripes[h.Sum32()%uint32(len(k.stripes))]
	m.Lock()
	return m.Unlock
}
