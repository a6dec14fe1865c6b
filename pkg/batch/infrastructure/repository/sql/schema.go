package sql

import (
	"time"
)

// RunTable is the table run history rows are stored in.
const RunTable = "batch_run"

// RunEntity is a schema model used for persistence.
type RunEntity struct {
	RunID         string    `gorm:"column:run_id;primaryKey"`
	Dataset       string    `gorm:"column:dataset"`
	FirstBatch    int64     `gorm:"column:first_batch"`
	NextBatch     int64     `gorm:"column:next_batch"`
	Batches       int       `gorm:"column:batches"`
	Records       int64     `gorm:"column:records"`
	RangesEmitted int       `gorm:"column:ranges_emitted"`
	FinalState    string    `gorm:"column:final_state"`
	Failure       string    `gorm:"column:failure"`
	StartTime     time.Time `gorm:"column:start_time"`
	EndTime       time.Time `gorm:"column:end_time"`
}

func (RunEntity) TableName() string {
	return RunTable
}
