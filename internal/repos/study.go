package repos

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/radview/radview-backend/internal/domain/imaging"
	"github.com/radview/radview-backend/internal/platform/dbctx"
	"github.com/radview/radview-backend/internal/platform/logger"
)

type StudyRepo interface {
	Create(dbc dbctx.Context, row *imaging.Study) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*imaging.Study, error)
	// GetByStudyUID returns (nil, nil) when no row exists.
	GetByStudyUID(dbc dbctx.Context, studyUID string) (*imaging.Study, error)
	ListByPatient(dbc dbctx.Context, patientID uuid.UUID) ([]*imaging.Study, error)
	// MergeModality adds a modality code to the study's observed set if not
	// already present.
	MergeModality(dbc dbctx.Context, id uuid.UUID, modality string) error
}

type studyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStudyRepo(db *gorm.DB, baseLog *logger.Logger) StudyRepo {
	return &studyRepo{db: db, log: baseLog.With("repo", "StudyRepo")}
}

func (r *studyRepo) tx(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *studyRepo) Create(dbc dbctx.Context, row *imaging.Study) error {
	return r.tx(dbc).Create(row).Error
}

func (r *studyRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*imaging.Study, error) {
	var row imaging.Study
	if err := r.tx(dbc).Where("id = ?", id).First(&row).Error; err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *studyRepo) GetByStudyUID(dbc dbctx.Context, studyUID string) (*imaging.Study, error) {
	var row imaging.Study
	if err := r.tx(dbc).Where("study_instance_uid = ?", studyUID).First(&row).Error; err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *studyRepo) ListByPatient(dbc dbctx.Context, patientID uuid.UUID) ([]*imaging.Study, error) {
	var rows []*imaging.Study
	if err := r.tx(dbc).Where("patient_id = ?", patientID).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *studyRepo) MergeModality(dbc dbctx.Context, id uuid.UUID, modality string) error {
	if modality == "" {
		return nil
	}
	row, err := r.GetByID(dbc, id)
	if err != nil {
		return err
	}
	if row == nil {
		return gorm.ErrRecordNotFound
	}

	var modalities []string
	if len(row.Modalities) > 0 {
		if err := json.Unmarshal(row.Modalities, &modalities); err != nil {
			modalities = nil
		}
	}
	for _, m := range modalities {
		if m == modality {
			return nil
		}
	}
	modalities = append(modalities, modality)
	raw, err := json.Marshal(modalities)
	if err != nil {
		return err
	}

	return r.tx(dbc).Model(&imaging.Study{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"modalities": datatypes.JSON(raw),
			"updated_at": time.Now().UTC(),
		}).Error
}
