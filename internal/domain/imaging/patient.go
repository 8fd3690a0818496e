package imaging

import (
	"time"

	"github.com/google/uuid"
)

// Patient is the root of the clinical hierarchy. PatientID is the external,
// caller-supplied identifier, unique within an institution; ID is the
// authoritative internal key.
type Patient struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	PatientID string    `gorm:"column:patient_id;not null;uniqueIndex:idx_patient_external" json:"patient_id"`

	PatientName string `gorm:"column:patient_name" json:"patient_name"`
	Institution string `gorm:"column:institution;uniqueIndex:idx_patient_external" json:"institution"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Patient) TableName() string { return "patient" }
