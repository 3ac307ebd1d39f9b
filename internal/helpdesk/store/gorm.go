package store

import (
	"fmt"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kart-io/logger"

	"github.com/kart-io/helpdesk-x/internal/model"
)

var (
	clientFactory Factory
	once          sync.Once
)

// datastore implements the Factory interface over a SQL database.
type datastore struct {
	db *gorm.DB
}

// GetFactory returns the shared storage factory, opening the database on
// first use. Supported drivers: sqlite, mysql, postgres.
func GetFactory(driver, dsn string) (Factory, error) {
	var err error

	once.Do(func() {
		var ds *datastore
		ds, err = newDatastore(driver, dsn)
		if err != nil {
			logger.Errorf("failed to open %s database: %s", driver, err.Error())
			return
		}
		clientFactory = ds
	})

	if clientFactory == nil || err != nil {
		return nil, fmt.Errorf("failed to get storage factory: %w", err)
	}

	return clientFactory, nil
}

// NewFactory opens a fresh, non-shared factory. Used by tests.
func NewFactory(driver, dsn string) (Factory, error) {
	return newDatastore(driver, dsn)
}

func newDatastore(driver, dsn string) (*datastore, error) {
	dialector, err := openDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ds := &datastore{db}
	if err := ds.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return ds, nil
}

func openDialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "sqlite", "":
		return sqlite.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// Incidents returns the incident store.
func (ds *datastore) Incidents() IncidentStore {
	return newIncidents(ds.db)
}

// KBEntries returns the knowledge base entry store.
func (ds *datastore) KBEntries() KBEntryStore {
	return newKBEntries(ds.db)
}

// AutoMigrate migrates the database schema.
func (ds *datastore) AutoMigrate() error {
	return ds.db.AutoMigrate(
		&model.Incident{},
		&model.KBEntry{},
	)
}

// Close closes the factory and underlying connections.
func (ds *datastore) Close() error {
	sqlDB, err := ds.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
