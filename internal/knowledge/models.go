package knowledge

import "time"

// File is created by the upload path and read-only input everywhere else.
type File struct {
	ID               string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           string    `gorm:"type:varchar(64);index;not null" json:"-"`
	Filename         string    `gorm:"type:varchar(255);not null" json:"filename"`
	OriginalFilename string    `gorm:"type:varchar(255)" json:"original_filename"`
	FileSize         int64     `json:"file_size"`
	MimeType         string    `gorm:"type:varchar(128)" json:"mime_type"`
	ExtractedContent string    `gorm:"type:text" json:"-"`
	StoragePath      string    `gorm:"type:varchar(512)" json:"-"`
	CreatedAt        time.Time `json:"created_at"`
}

func (File) TableName() string { return "knowledge_base_files" }
