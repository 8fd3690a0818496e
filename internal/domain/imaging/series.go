package imaging

import (
	"time"

	"github.com/google/uuid"
)

type Series struct {
	ID                uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SeriesInstanceUID string    `gorm:"column:series_instance_uid;not null;uniqueIndex" json:"series_instance_uid"`
	StudyID           uuid.UUID `gorm:"type:uuid;not null;index" json:"study_id"`
	Study             *Study    `gorm:"constraint:OnDelete:CASCADE;foreignKey:StudyID;references:ID" json:"study,omitempty"`

	Modality    string `gorm:"column:modality" json:"modality"`
	BodyPart    string `gorm:"column:body_part" json:"body_part"`
	Description string `gorm:"column:description" json:"description"`
	Institution string `gorm:"column:institution" json:"institution"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Series) TableName() string { return "series" }
