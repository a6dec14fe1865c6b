package model

import "time"

// DefaultCheckpointTable is the table the SQL checkpoint store uses when none is configured.
const DefaultCheckpointTable = "batch_checkpoint"

// Checkpoint is the durable "next batch to process" marker of one dataset.
// Version increases by one on every successful write; 0 means no record exists yet.
type Checkpoint struct {
	Dataset     string    `gorm:"column:dataset;primaryKey"`
	BatchNumber int64     `gorm:"column:batch_number"`
	Version     int64     `gorm:"column:version"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

// TableName implements the gorm Tabler interface.
func (Checkpoint) TableName() string {
	return DefaultCheckpointTable
}

// ColdStart returns the checkpoint assumed when none has been stored.
func ColdStart(dataset string) Checkpoint {
	return Checkpoint{Dataset: dataset, BatchNumber: 1}
}

// Message returns the wire form of the checkpoint.
func (c Checkpoint) Message() CheckpointMessage {
	return CheckpointMessage{BatchNumber: c.BatchNumber}
}

// CheckpointMessage is the JSON form of a checkpoint: {"BatchNumber": n}.
type CheckpointMessage struct {
	BatchNumber int64 `json:"BatchNumber"`
}
