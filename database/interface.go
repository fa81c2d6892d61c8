package database

import (
	model "mini-app-service/models"
)

// DeveloperMutation mutates a developer inside an atomic read-modify-write.
// Returning an error aborts the write.
type DeveloperMutation func(dev *model.Developer) error

// AppMutation mutates an app inside an atomic read-modify-write.
type AppMutation func(app *model.App) error

// Database interface for different database implementations
type Database interface {
	// Developer operations
	CreateDeveloper(dev *model.Developer) error // ErrAlreadyExists on duplicate identity key
	GetDeveloperByID(id string) (*model.Developer, error)
	GetDeveloperByIdentity(identityKey string) (*model.Developer, error)
	UpdateDeveloper(id string, fn DeveloperMutation) (*model.Developer, error)

	// App operations
	CreateApp(app *model.App) error // ErrAlreadyExists on duplicate url
	GetAppByURL(url string) (*model.App, error)
	UpdateApp(url string, fn AppMutation) (*model.App, error)
	ListAppsByOwnerWithCursor(developerID string, cursor int64, size int) ([]*model.App, int64, error)
	ListAppsByStatusWithCursor(status model.AppStatus, cursor int64, size int) ([]*model.App, int64, error)
	CountApps() (int64, error)

	// Points ledger operations
	CreatePointsEntry(entry *model.PointsEntry) error
	ListPointsEntries(identity string) ([]*model.PointsEntry, error)

	// General operations
	Close() error
}

// DBType database type
type DBType string

const (
	DBTypePostgres DBType = "postgres"
	DBTypePebble   DBType = "pebble"
)

// Global database instance
var DB Database

// InitDatabase initialize database with specified type
func InitDatabase(dbType DBType, config interface{}) error {
	var err error

	switch dbType {
	case DBTypePebble:
		DB, err = NewPebbleDatabase(config)
	case DBTypePostgres:
		DB, err = NewGormDatabase(config)
	default:
		return ErrUnsupportedDBType
	}

	return err
}
