package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/radview/radview-backend/internal/domain/imaging"
	"github.com/radview/radview-backend/internal/platform/dbctx"
	"github.com/radview/radview-backend/internal/platform/logger"
)

type PatientRepo interface {
	Create(dbc dbctx.Context, row *imaging.Patient) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*imaging.Patient, error)
	// GetByExternalID looks a patient up by the caller-supplied identifier.
	// Returns (nil, nil) when no row exists.
	GetByExternalID(dbc dbctx.Context, patientID, institution string) (*imaging.Patient, error)
	List(dbc dbctx.Context, institution string, limit, offset int) ([]*imaging.Patient, error)
}

type patientRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPatientRepo(db *gorm.DB, baseLog *logger.Logger) PatientRepo {
	return &patientRepo{db: db, log: baseLog.With("repo", "PatientRepo")}
}

func (r *patientRepo) tx(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *patientRepo) Create(dbc dbctx.Context, row *imaging.Patient) error {
	return r.tx(dbc).Create(row).Error
}

func (r *patientRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*imaging.Patient, error) {
	var row imaging.Patient
	if err := r.tx(dbc).Where("id = ?", id).First(&row).Error; err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *patientRepo) GetByExternalID(dbc dbctx.Context, patientID, institution string) (*imaging.Patient, error) {
	var row imaging.Patient
	q := r.tx(dbc).Where("patient_id = ?", patientID)
	if institution != "" {
		q = q.Where("institution = ?", institution)
	}
	if err := q.First(&row).Error; err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *patientRepo) List(dbc dbctx.Context, institution string, limit, offset int) ([]*imaging.Patient, error) {
	var rows []*imaging.Patient
	q := r.tx(dbc).Order("created_at DESC")
	if institution != "" {
		q = q.Where("institution = ?", institution)
	}
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
