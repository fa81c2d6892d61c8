package database

import (
	"fmt"
	"time"

	model "mini-app-service/models"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormDatabase relational implementation backed by postgres
type GormDatabase struct {
	db *gorm.DB
}

// GormConfig postgres configuration
type GormConfig struct {
	Dsn          string
	MaxOpenConns int
	MaxIdleConns int
}

// NewGormDatabase open a postgres connection and migrate the schema
func NewGormDatabase(config interface{}) (Database, error) {
	cfg, ok := config.(*GormConfig)
	if !ok {
		return nil, fmt.Errorf("invalid postgres config type")
	}
	if cfg.Dsn == "" {
		return nil, fmt.Errorf("empty DSN")
	}

	db, err := gorm.Open(postgres.Open(cfg.Dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(60 * time.Minute)

	if err := db.AutoMigrate(&model.Developer{}, &model.App{}, &model.PointsEntry{}); err != nil {
		return nil, errors.Wrap(err, "auto migrate")
	}

	log.Info().Int("max_open_conns", cfg.MaxOpenConns).Msg("Postgres connected")
	return &GormDatabase{db: db}, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Developer operations

func (g *GormDatabase) CreateDeveloper(dev *model.Developer) error {
	res := g.db.Clauses(clause.OnConflict{DoNothing: true}).Create(dev)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (g *GormDatabase) GetDeveloperByID(id string) (*model.Developer, error) {
	var dev model.Developer
	if err := g.db.Where("id = ?", id).First(&dev).Error; err != nil {
		return nil, notFound(err)
	}
	return &dev, nil
}

func (g *GormDatabase) GetDeveloperByIdentity(identityKey string) (*model.Developer, error) {
	var dev model.Developer
	if err := g.db.Where("identity_key = ?", identityKey).First(&dev).Error; err != nil {
		return nil, notFound(err)
	}
	return &dev, nil
}

func (g *GormDatabase) UpdateDeveloper(id string, fn DeveloperMutation) (*model.Developer, error) {
	var dev model.Developer
	err := g.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&dev).Error; err != nil {
			return notFound(err)
		}
		if err := fn(&dev); err != nil {
			return err
		}
		dev.ID = id
		return tx.Save(&dev).Error
	})
	if err != nil {
		return nil, err
	}
	return &dev, nil
}

// App operations

func (g *GormDatabase) CreateApp(app *model.App) error {
	res := g.db.Clauses(clause.OnConflict{DoNothing: true}).Create(app)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (g *GormDatabase) GetAppByURL(url string) (*model.App, error) {
	var app model.App
	if err := g.db.Where("url = ?", url).First(&app).Error; err != nil {
		return nil, notFound(err)
	}
	return &app, nil
}

func (g *GormDatabase) UpdateApp(url string, fn AppMutation) (*model.App, error) {
	var app model.App
	err := g.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("url = ?", url).First(&app).Error; err != nil {
			return notFound(err)
		}
		owner := app.OwnerDeveloperID
		if err := fn(&app); err != nil {
			return err
		}
		app.URL = url
		app.OwnerDeveloperID = owner
		return tx.Save(&app).Error
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (g *GormDatabase) ListAppsByOwnerWithCursor(developerID string, cursor int64, size int) ([]*model.App, int64, error) {
	if cursor < 0 {
		cursor = 0
	}
	if size <= 0 {
		size = 20
	}
	apps := make([]*model.App, 0)
	err := g.db.Where("owner_developer_id = ?", developerID).
		Order("created_at DESC").Order("url ASC").
		Offset(int(cursor)).Limit(size).
		Find(&apps).Error
	if err != nil {
		return nil, 0, err
	}
	return apps, cursor + int64(len(apps)), nil
}

func (g *GormDatabase) ListAppsByStatusWithCursor(status model.AppStatus, cursor int64, size int) ([]*model.App, int64, error) {
	if cursor < 0 {
		cursor = 0
	}
	if size <= 0 {
		size = 20
	}
	q := g.db.Model(&model.App{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	apps := make([]*model.App, 0)
	if err := q.Order("created_at ASC").Order("url ASC").Offset(int(cursor)).Limit(size).Find(&apps).Error; err != nil {
		return nil, 0, err
	}
	return apps, cursor + int64(len(apps)), nil
}

func (g *GormDatabase) CountApps() (int64, error) {
	var count int64
	err := g.db.Model(&model.App{}).Count(&count).Error
	return count, err
}

// Points ledger operations

func (g *GormDatabase) CreatePointsEntry(entry *model.PointsEntry) error {
	return g.db.Create(entry).Error
}

func (g *GormDatabase) ListPointsEntries(identity string) ([]*model.PointsEntry, error) {
	entries := make([]*model.PointsEntry, 0)
	err := g.db.Where("identity = ?", identity).Order("created_at DESC").Find(&entries).Error
	return entries, err
}

// Close close the connection pool
func (g *GormDatabase) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
