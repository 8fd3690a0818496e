package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/radview/radview-backend/internal/domain/imaging"
	"github.com/radview/radview-backend/internal/platform/dbctx"
	"github.com/radview/radview-backend/internal/platform/logger"
)

type InstanceRepo interface {
	// Upsert inserts the instance or, when the SOPInstanceUID already exists,
	// refreshes the stored paths, size and status in place. Deterministic
	// pathing makes a re-upload of the same UID an overwrite, and the
	// metadata row follows the same rule.
	Upsert(dbc dbctx.Context, row *imaging.Instance) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*imaging.Instance, error)
	GetBySOPUID(dbc dbctx.Context, sopUID string) (*imaging.Instance, error)
	ListBySeries(dbc dbctx.Context, seriesID uuid.UUID) ([]*imaging.Instance, error)
	CountBySeries(dbc dbctx.Context, seriesID uuid.UUID) (int64, error)
	FullDeleteByID(dbc dbctx.Context, id uuid.UUID) error
}

type instanceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInstanceRepo(db *gorm.DB, baseLog *logger.Logger) InstanceRepo {
	return &instanceRepo{db: db, log: baseLog.With("repo", "InstanceRepo")}
}

func (r *instanceRepo) tx(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *instanceRepo) Upsert(dbc dbctx.Context, row *imaging.Instance) error {
	return r.tx(dbc).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "sop_instance_uid"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"file_path", "thumbnail_path", "file_size_bytes", "processing_status", "updated_at",
		}),
	}).Create(row).Error
}

func (r *instanceRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*imaging.Instance, error) {
	var row imaging.Instance
	if err := r.tx(dbc).Where("id = ?", id).First(&row).Error; err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *instanceRepo) GetBySOPUID(dbc dbctx.Context, sopUID string) (*imaging.Instance, error) {
	var row imaging.Instance
	if err := r.tx(dbc).Where("sop_instance_uid = ?", sopUID).First(&row).Error; err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *instanceRepo) ListBySeries(dbc dbctx.Context, seriesID uuid.UUID) ([]*imaging.Instance, error) {
	var rows []*imaging.Instance
	if err := r.tx(dbc).Where("series_id = ?", seriesID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *instanceRepo) CountBySeries(dbc dbctx.Context, seriesID uuid.UUID) (int64, error) {
	var n int64
	if err := r.tx(dbc).Model(&imaging.Instance{}).Where("series_id = ?", seriesID).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *instanceRepo) FullDeleteByID(dbc dbctx.Context, id uuid.UUID) error {
	return r.tx(dbc).Unscoped().Where("id = ?", id).Delete(&imaging.Instance{}).Error
}
