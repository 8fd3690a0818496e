package services

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/radview/radview-backend/internal/platform/dbctx"
	"github.com/radview/radview-backend/internal/platform/gcp"
	"github.com/radview/radview-backend/internal/platform/logger"
	"github.com/radview/radview-backend/internal/repos"
)

// DeletionService removes an instance: thumbnail object, then asset object,
// then the metadata row. Object deletes run before the row delete so a crash
// mid-sequence leaves at worst an orphaned blob, never a metadata row
// pointing at nothing. Ancestor Series/Study/Patient rows are left in place
// even when this was their last instance.
type DeletionService interface {
	// Delete reports (false, nil) for an unknown instance id. Errors wrap
	// ErrObjectUndeleted or ErrMetadataUndeleted so callers can retry the
	// specific remaining step.
	Delete(dbc dbctx.Context, instanceID uuid.UUID) (bool, error)
}

type deletionService struct {
	log          *logger.Logger
	store        gcp.ObjectStore
	instanceRepo repos.InstanceRepo
}

func NewDeletionService(baseLog *logger.Logger, store gcp.ObjectStore, instanceRepo repos.InstanceRepo) DeletionService {
	return &deletionService{
		log:          baseLog.With("service", "DeletionService"),
		store:        store,
		instanceRepo: instanceRepo,
	}
}

func (ds *deletionService) Delete(dbc dbctx.Context, instanceID uuid.UUID) (bool, error) {
	row, err := ds.instanceRepo.GetByID(dbc, instanceID)
	if err != nil {
		return false, err
	}
	if row == nil {
		return false, nil
	}

	if row.ThumbnailPath != nil && *row.ThumbnailPath != "" {
		if err := ds.store.Delete(dbc.Ctx, gcp.BucketCategoryThumbnail, *row.ThumbnailPath); err != nil {
			return false, fmt.Errorf("%w: thumbnail %s: %v", ErrObjectUndeleted, *row.ThumbnailPath, err)
		}
	}

	if err := ds.store.Delete(dbc.Ctx, gcp.BucketCategoryImage, row.FilePath); err != nil {
		return false, fmt.Errorf("%w: asset %s: %v", ErrObjectUndeleted, row.FilePath, err)
	}

	if err := ds.instanceRepo.FullDeleteByID(dbc, instanceID); err != nil {
		return false, fmt.Errorf("%w: %v", ErrMetadataUndeleted, err)
	}

	ds.log.Info("instance deleted", "instance_id", instanceID, "file_path", row.FilePath)
	return true, nil
}
