package datastore

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/scgenomics/doubletect/internal/conf"
)

// Interface abstracts the underlying database so callers do not care
// which driver backs the store.
type Interface interface {
	Open() error
	Close() error
	SaveRun(run *Run) error
	GetRun(runID string) (*Run, error)
	GetRunCells(runID string) ([]CellResult, error)
	LatestRun() (*Run, error)
}

// DataStore implements the parts of Interface that are shared across
// database backends.
type DataStore struct {
	DB *gorm.DB
}

// New creates the configured datastore. Only SQLite is supported; a
// disabled output section yields a nil store, which callers treat as
// "do not persist".
func New(settings *conf.Settings) Interface {
	if !settings.Output.SQLite.Enabled {
		return nil
	}
	return &SQLiteStore{Settings: settings}
}

// SaveRun persists a run together with its per-cell results in a single
// transaction. Partial runs are never visible to readers.
func (ds *DataStore) SaveRun(run *Run) error {
	if ds.DB == nil {
		return fmt.Errorf("database connection is not initialized")
	}
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("error saving run %s: %w", run.RunID, err)
		}
		return nil
	})
}

// GetRun retrieves a run by its UUID, without per-cell results.
func (ds *DataStore) GetRun(runID string) (*Run, error) {
	var run Run
	if err := ds.DB.Where("run_id = ?", runID).First(&run).Error; err != nil {
		return nil, fmt.Errorf("error retrieving run %s: %w", runID, err)
	}
	return &run, nil
}

// GetRunCells retrieves the per-cell results of a run ordered by cell index.
func (ds *DataStore) GetRunCells(runID string) ([]CellResult, error) {
	run, err := ds.GetRun(runID)
	if err != nil {
		return nil, err
	}
	var cells []CellResult
	err = ds.DB.Where("run_ref = ?", run.ID).
		Order("cell_index ASC").
		Find(&cells).Error
	if err != nil {
		return nil, fmt.Errorf("error retrieving cells for run %s: %w", runID, err)
	}
	return cells, nil
}

// LatestRun retrieves the most recently completed run.
func (ds *DataStore) LatestRun() (*Run, error) {
	var run Run
	if err := ds.DB.Order("completed_at DESC").First(&run).Error; err != nil {
		return nil, fmt.Errorf("error retrieving latest run: %w", err)
	}
	return &run, nil
}

// performAutoMigration automates database migrations with error handling.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&Run{}, &CellResult{}); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		log.Printf("%s database connection initialized: %s", dbType, connectionInfo)
	}

	return nil
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      logger.Warn,
			Colorful:      true,
		},
	)
}
