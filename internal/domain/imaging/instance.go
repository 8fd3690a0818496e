package imaging

import (
	"time"

	"github.com/google/uuid"
)

const (
	ProcessingStatusPending   = "pending"
	ProcessingStatusCompleted = "completed"
	ProcessingStatusFailed    = "failed"
)

// Instance is the smallest addressable unit: one stored file. FilePath is a
// deterministic function of the full ancestry, so re-uploading the same
// SOPInstanceUID overwrites in place instead of orphaning storage.
// ThumbnailPath is set only when the source payload was a raster image.
type Instance struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SOPInstanceUID string    `gorm:"column:sop_instance_uid;not null;uniqueIndex" json:"sop_instance_uid"`
	SeriesID       uuid.UUID `gorm:"type:uuid;not null;index" json:"series_id"`
	Series         *Series   `gorm:"constraint:OnDelete:CASCADE;foreignKey:SeriesID;references:ID" json:"series,omitempty"`

	FilePath         string  `gorm:"column:file_path;not null" json:"file_path"`
	ThumbnailPath    *string `gorm:"column:thumbnail_path" json:"thumbnail_path"`
	FileSizeBytes    int64   `gorm:"column:file_size_bytes" json:"file_size_bytes"`
	ProcessingStatus string  `gorm:"column:processing_status;not null;default:'pending'" json:"processing_status"`
	Institution      string  `gorm:"column:institution" json:"institution"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Instance) TableName() string { return "instance" }
