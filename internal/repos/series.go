package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/radview/radview-backend/internal/domain/imaging"
	"github.com/radview/radview-backend/internal/platform/dbctx"
	"github.com/radview/radview-backend/internal/platform/logger"
)

type SeriesRepo interface {
	Create(dbc dbctx.Context, row *imaging.Series) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*imaging.Series, error)
	// GetBySeriesUID returns (nil, nil) when no row exists.
	GetBySeriesUID(dbc dbctx.Context, seriesUID string) (*imaging.Series, error)
	ListByStudy(dbc dbctx.Context, studyID uuid.UUID) ([]*imaging.Series, error)
}

type seriesRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSeriesRepo(db *gorm.DB, baseLog *logger.Logger) SeriesRepo {
	return &seriesRepo{db: db, log: baseLog.With("repo", "SeriesRepo")}
}

func (r *seriesRepo) tx(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *seriesRepo) Create(dbc dbctx.Context, row *imaging.Series) error {
	return r.tx(dbc).Create(row).Error
}

func (r *seriesRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*imaging.Series, error) {
	var row imaging.Series
	if err := r.tx(dbc).Where("id = ?", id).First(&row).Error; err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *seriesRepo) GetBySeriesUID(dbc dbctx.Context, seriesUID string) (*imaging.Series, error) {
	var row imaging.Series
	if err := r.tx(dbc).Where("series_instance_uid = ?", seriesUID).First(&row).Error; err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *seriesRepo) ListByStudy(dbc dbctx.Context, studyID uuid.UUID) ([]*imaging.Series, error) {
	var rows []*imaging.Series
	if err := r.tx(dbc).Where("study_id = ?", studyID).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
