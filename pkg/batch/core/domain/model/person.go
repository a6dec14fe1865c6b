package model

// DefaultPersonTable is the destination table used when none is configured.
const DefaultPersonTable = "person"

// Person is one record of the dataset and one row of the destination table.
// Id is the natural key supplied by the input, never generated by the database.
type Person struct {
	ID        int64  `gorm:"column:id;primaryKey;autoIncrement:false" json:"Id"`
	Surname   string `gorm:"column:surname" json:"Surname"`
	Firstname string `gorm:"column:firstname" json:"Firstname"`
}

// TableName implements the gorm Tabler interface.
func (Person) TableName() string {
	return DefaultPersonTable
}

// Batch is a contiguous window of records identified by its 1-based Number.
type Batch struct {
	Number int64
	// Offset is the absolute number of records preceding this batch in the dataset.
	Offset  int64
	Records []Person
}

// Len returns the number of records in the batch.
func (b Batch) Len() int {
	return len(b.Records)
}
