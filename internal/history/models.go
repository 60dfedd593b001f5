// Package history is the write-only audit log for single-chart
// generation calls. Nothing in the serving path reads it back.
package history

import "time"

type Record struct {
	ID                 string    `gorm:"primaryKey;size:26"` // ULID
	UserID             string    `gorm:"type:varchar(64);index;not null"`
	Prompt             string    `gorm:"type:text;not null"`
	ChartConfig        string    `gorm:"type:jsonb;not null"`
	ChartType          string    `gorm:"type:varchar(32)"`
	Diagnostics        string    `gorm:"type:jsonb"`
	KnowledgeBaseFiles string    `gorm:"type:jsonb"`
	CreatedAt          time.Time `gorm:"index"`
}

func (Record) TableName() string { return "chart_history" }
