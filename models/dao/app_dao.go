package dao

import (
	"mini-app-service/database"
	model "mini-app-service/models"
)

// AppDAO app listing persistence
type AppDAO struct {
	db database.Database
}

// NewAppDAO create app DAO; nil db falls back to the global instance
func NewAppDAO(db database.Database) *AppDAO {
	if db == nil {
		db = database.DB
	}
	return &AppDAO{db: db}
}

// Create insert an app, database.ErrAlreadyExists when the url is taken
func (d *AppDAO) Create(app *model.App) error {
	if d.db == nil {
		return errNotInitialized
	}
	return storageErr(d.db.CreateApp(app))
}

// GetByURL get app by canonical url
func (d *AppDAO) GetByURL(url string) (*model.App, error) {
	if d.db == nil {
		return nil, errNotInitialized
	}
	app, err := d.db.GetAppByURL(url)
	return app, storageErr(err)
}

// Update atomic read-modify-write; errors returned by fn surface unchanged
func (d *AppDAO) Update(url string, fn func(app *model.App) error) (*model.App, error) {
	if d.db == nil {
		return nil, errNotInitialized
	}
	app, err := d.db.UpdateApp(url, func(app *model.App) error {
		if err := fn(app); err != nil {
			return &mutationErr{err: err}
		}
		return nil
	})
	if err != nil {
		return nil, unwrapMutation(err)
	}
	return app, nil
}

// ListByOwnerWithCursor apps of a developer, newest first
func (d *AppDAO) ListByOwnerWithCursor(developerID string, cursor int64, size int) ([]*model.App, int64, error) {
	if d.db == nil {
		return nil, 0, errNotInitialized
	}
	apps, next, err := d.db.ListAppsByOwnerWithCursor(developerID, cursor, size)
	return apps, next, storageErr(err)
}

// ListByStatusWithCursor apps in a status, oldest first; empty status lists all
func (d *AppDAO) ListByStatusWithCursor(status model.AppStatus, cursor int64, size int) ([]*model.App, int64, error) {
	if d.db == nil {
		return nil, 0, errNotInitialized
	}
	apps, next, err := d.db.ListAppsByStatusWithCursor(status, cursor, size)
	return apps, next, storageErr(err)
}

// Count total apps
func (d *AppDAO) Count() (int64, error) {
	if d.db == nil {
		return 0, errNotInitialized
	}
	n, err := d.db.CountApps()
	return n, storageErr(err)
}
