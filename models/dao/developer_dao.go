package dao

import (
	"mini-app-service/database"
	model "mini-app-service/models"
)

// DeveloperDAO developer persistence
type DeveloperDAO struct {
	db database.Database
}

// NewDeveloperDAO create developer DAO; nil db falls back to the global instance
func NewDeveloperDAO(db database.Database) *DeveloperDAO {
	if db == nil {
		db = database.DB
	}
	return &DeveloperDAO{db: db}
}

// Create insert a developer, database.ErrAlreadyExists when the identity is taken
func (d *DeveloperDAO) Create(dev *model.Developer) error {
	if d.db == nil {
		return errNotInitialized
	}
	return storageErr(d.db.CreateDeveloper(dev))
}

// GetByID get developer by id
func (d *DeveloperDAO) GetByID(id string) (*model.Developer, error) {
	if d.db == nil {
		return nil, errNotInitialized
	}
	dev, err := d.db.GetDeveloperByID(id)
	return dev, storageErr(err)
}

// GetByIdentity get developer by normalized identity key
func (d *DeveloperDAO) GetByIdentity(identityKey string) (*model.Developer, error) {
	if d.db == nil {
		return nil, errNotInitialized
	}
	dev, err := d.db.GetDeveloperByIdentity(identityKey)
	return dev, storageErr(err)
}

// Update atomic read-modify-write; errors returned by fn surface unchanged
func (d *DeveloperDAO) Update(id string, fn func(dev *model.Developer) error) (*model.Developer, error) {
	if d.db == nil {
		return nil, errNotInitialized
	}
	dev, err := d.db.UpdateDeveloper(id, func(dev *model.Developer) error {
		if err := fn(dev); err != nil {
			return &mutationErr{err: err}
		}
		return nil
	})
	if err != nil {
		return nil, unwrapMutation(err)
	}
	return dev, nil
}
