// model.go defines the persisted data model for calibration runs
package datastore

import "time"

// Run represents one completed scoring and calibration pass over a dataset.
type Run struct {
	ID               uint   `gorm:"primaryKey"`
	RunID            string `gorm:"uniqueIndex;not null"` // UUID assigned at run start
	StartedAt        time.Time
	CompletedAt      time.Time
	InputPath        string
	RealCells        int
	SyntheticCells   int
	DoubletRatio     float64
	TargetPrevalence float64
	Threshold        float64
	ExpectedDoublets int
	CalledDoublets   int
	Converged        bool
	Iterations       int
	Cells            []CellResult `gorm:"foreignKey:RunRef;constraint:OnDelete:CASCADE"`
}

// CellResult records the per-cell outcome of a run.
type CellResult struct {
	ID           uint `gorm:"primaryKey"`
	RunRef       uint `gorm:"index;not null"` // Foreign key to associate with Run
	CellIndex    int  `gorm:"index:idx_cell_run_index"`
	LogitDoublet float64
	RawScore     float64
	Score        float64 `gorm:"index"` // calibrated doublet probability
	IsDoublet    bool
	Smoothed     *bool // nil when smoothing was disabled
}
