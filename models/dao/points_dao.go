package dao

import (
	"mini-app-service/database"
	model "mini-app-service/models"
)

// PointsDAO points ledger persistence
type PointsDAO struct {
	db database.Database
}

// NewPointsDAO create points DAO; nil db falls back to the global instance
func NewPointsDAO(db database.Database) *PointsDAO {
	if db == nil {
		db = database.DB
	}
	return &PointsDAO{db: db}
}

// Create append a ledger entry
func (d *PointsDAO) Create(entry *model.PointsEntry) error {
	if d.db == nil {
		return errNotInitialized
	}
	return storageErr(d.db.CreatePointsEntry(entry))
}

// ListByIdentity ledger entries of an identity, newest first
func (d *PointsDAO) ListByIdentity(identity string) ([]*model.PointsEntry, error) {
	if d.db == nil {
		return nil, errNotInitialized
	}
	entries, err := d.db.ListPointsEntries(identity)
	return entries, storageErr(err)
}
