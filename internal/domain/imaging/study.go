package imaging

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Study groups the series acquired in one imaging visit. StudyInstanceUID is
// globally unique and owned by the uploader; the owning patient never
// changes after creation.
type Study struct {
	ID               uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StudyInstanceUID string    `gorm:"column:study_instance_uid;not null;uniqueIndex" json:"study_instance_uid"`
	PatientID        uuid.UUID `gorm:"type:uuid;not null;index" json:"patient_id"`
	Patient          *Patient  `gorm:"constraint:OnDelete:CASCADE;foreignKey:PatientID;references:ID" json:"patient,omitempty"`

	Description string `gorm:"column:description" json:"description"`
	StudyDate   string `gorm:"column:study_date" json:"study_date"`
	// Modalities is the union of modality codes observed across the study's
	// series, e.g. ["CT","SR"].
	Modalities  datatypes.JSON `gorm:"column:modalities;type:jsonb" json:"modalities"`
	Institution string         `gorm:"column:institution" json:"institution"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Study) TableName() string { return "study" }
