package store

import "time"

// ResultKind records whether a run produced tabular or textual output
type ResultKind string

const (
	ResultText  ResultKind = "text"
	ResultTable ResultKind = "table"
)

// ResultKindFor maps a document's table flag to the stored result kind
func ResultKindFor(hasTables bool) ResultKind {
	if hasTables {
		return ResultTable
	}
	return ResultText
}

// SchemaVersion is bumped whenever ProcessingRun changes shape
const SchemaVersion = 1

// ProcessingRun is one successfully exported request
type ProcessingRun struct {
	ID       uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Filename string     `gorm:"not null" json:"filename"`
	Result   ResultKind `gorm:"type:text;not null" json:"result"`
	Format   string     `gorm:"type:text;not null;index" json:"format"`
	TS       time.Time  `gorm:"column:ts;not null;index" json:"ts"`
}

// TableName keeps the table name stable across model renames
func (ProcessingRun) TableName() string {
	return "logs"
}

// schemaMeta tracks the applied schema version
type schemaMeta struct {
	ID      uint `gorm:"primaryKey"`
	Version int  `gorm:"not null"`
}

func (schemaMeta) TableName() string {
	return "schema_meta"
}
