package services

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/radview/radview-backend/internal/domain/imaging"
	"github.com/radview/radview-backend/internal/platform/dbctx"
	"github.com/radview/radview-backend/internal/platform/envutil"
	"github.com/radview/radview-backend/internal/platform/gcp"
	"github.com/radview/radview-backend/internal/platform/logger"
	"github.com/radview/radview-backend/internal/repos"
)

type UploadStage string

const (
	StageUploading           UploadStage = "uploading"
	StageProcessing          UploadStage = "processing"
	StageGeneratingThumbnail UploadStage = "generating-thumbnail"
	StageSavingMetadata      UploadStage = "saving-metadata"
	StageComplete            UploadStage = "complete"
)

// ProgressFunc reports staged progress for one file. May be nil.
type ProgressFunc func(stage UploadStage, percent int)

// BatchProgressFunc additionally carries the file index and an overall
// percentage aggregated across the batch. May be nil.
type BatchProgressFunc func(fileIndex, fileCount int, stage UploadStage, filePercent, overallPercent int)

type UploadInput struct {
	FileName    string
	ContentType string
	Data        []byte

	PatientID   string
	PatientName string
	Institution string

	StudyUID         string
	StudyDescription string
	StudyDate        string

	SeriesUID         string
	Modality          string
	BodyPart          string
	SeriesDescription string

	SOPUID string
}

type UploadResult struct {
	Success       bool      `json:"success"`
	Canceled      bool      `json:"canceled,omitempty"`
	InstanceID    uuid.UUID `json:"instance_id,omitempty"`
	FilePath      string    `json:"file_path,omitempty"`
	ThumbnailPath string    `json:"thumbnail_path,omitempty"`
	Error         string    `json:"error,omitempty"`

	Err error `json:"-"`
}

type UploadService interface {
	// Upload runs the full pipeline for one file: validate, store the asset,
	// derive an optional thumbnail, resolve the hierarchy, persist the
	// instance row.
	Upload(dbc dbctx.Context, in UploadInput, onProgress ProgressFunc) UploadResult
	// UploadBatch runs every input through Upload and returns one result per
	// input, i-th result for i-th input. A per-file failure never aborts the
	// batch.
	UploadBatch(dbc dbctx.Context, inputs []UploadInput, onProgress BatchProgressFunc) []UploadResult
}

type uploadService struct {
	log          *logger.Logger
	store        gcp.ObjectStore
	resolver     HierarchyResolver
	thumbs       ThumbnailGenerator
	instanceRepo repos.InstanceRepo

	maxBytes    int64
	concurrency int
}

func NewUploadService(
	baseLog *logger.Logger,
	store gcp.ObjectStore,
	resolver HierarchyResolver,
	thumbs ThumbnailGenerator,
	instanceRepo repos.InstanceRepo,
) UploadService {
	concurrency := envutil.Int("UPLOAD_CONCURRENCY", 1)
	if concurrency < 1 {
		concurrency = 1
	}
	return &uploadService{
		log:          baseLog.With("service", "UploadService"),
		store:        store,
		resolver:     resolver,
		thumbs:       thumbs,
		instanceRepo: instanceRepo,
		maxBytes:     envutil.Int64("UPLOAD_MAX_BYTES", 512<<20),
		concurrency:  concurrency,
	}
}

var allowedContentTypes = map[string]bool{
	"application/dicom": true,
	"image/jpeg":        true,
	"image/png":         true,
	"image/gif":         true,
}

var rasterContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// validate runs entirely in memory so a rejected file costs no network round
// trip.
func (s *uploadService) validate(in UploadInput) error {
	if len(in.Data) == 0 {
		return fmt.Errorf("%w: empty file", ErrValidation)
	}
	if int64(len(in.Data)) > s.maxBytes {
		return fmt.Errorf("%w: file size %d exceeds limit %d", ErrValidation, len(in.Data), s.maxBytes)
	}
	ct := normalizeContentType(in.ContentType)
	ext := strings.ToLower(strings.TrimSpace(in.FileName))
	hasKnownExt := false
	for e := range recognizedExtensions {
		if strings.HasSuffix(ext, e) {
			hasKnownExt = true
			break
		}
	}
	if !allowedContentTypes[ct] && !hasKnownExt {
		return fmt.Errorf("%w: unsupported file type %q (%s)", ErrValidation, in.FileName, in.ContentType)
	}
	if in.PatientID == "" || in.StudyUID == "" || in.SeriesUID == "" || in.SOPUID == "" {
		return fmt.Errorf("%w: patient id and study/series/sop UIDs are required", ErrValidation)
	}
	return nil
}

func normalizeContentType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}

func isRaster(contentType, fileName string) bool {
	if rasterContentTypes[normalizeContentType(contentType)] {
		return true
	}
	switch ExtensionFor(fileName) {
	case ".jpg", ".jpeg", ".png", ".gif":
		return true
	default:
		return false
	}
}

func (s *uploadService) Upload(dbc dbctx.Context, in UploadInput, onProgress ProgressFunc) UploadResult {
	report := func(stage UploadStage, pct int) {
		if onProgress != nil {
			onProgress(stage, pct)
		}
	}

	if err := s.validate(in); err != nil {
		return UploadResult{Err: err, Error: err.Error()}
	}

	assetKey := AssetKey(in.PatientID, in.StudyUID, in.SeriesUID, in.SOPUID, in.FileName)
	report(StageUploading, 10)

	// Key collisions are overwrites: deterministic pathing means the same
	// identifiers always address the same object.
	if err := s.store.Upload(dbc.Ctx, gcp.BucketCategoryImage, assetKey, bytes.NewReader(in.Data), in.ContentType); err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrUploadTransport, err)
		s.log.Error("asset upload failed", "file_path", assetKey, "error", err)
		return UploadResult{Err: wrapped, Error: wrapped.Error()}
	}
	report(StageProcessing, 40)

	var thumbnailKey string
	if isRaster(in.ContentType, in.FileName) {
		report(StageGeneratingThumbnail, 55)
		thumbnailKey = s.generateAndStoreThumbnail(dbc, in, assetKey)
	}

	report(StageSavingMetadata, 75)
	resolved, err := s.resolver.Resolve(dbc, ResolveInput{
		PatientID:         in.PatientID,
		PatientName:       in.PatientName,
		Institution:       in.Institution,
		StudyUID:          in.StudyUID,
		StudyDescription:  in.StudyDescription,
		StudyDate:         in.StudyDate,
		SeriesUID:         in.SeriesUID,
		Modality:          in.Modality,
		BodyPart:          in.BodyPart,
		SeriesDescription: in.SeriesDescription,
	})
	if err != nil {
		s.compensate(dbc, assetKey, thumbnailKey)
		s.log.Error("hierarchy resolution failed", "file_path", assetKey, "error", err)
		return UploadResult{Err: err, Error: err.Error()}
	}

	row := &imaging.Instance{
		ID:               uuid.New(),
		SOPInstanceUID:   in.SOPUID,
		SeriesID:         resolved.SeriesID,
		FilePath:         assetKey,
		FileSizeBytes:    int64(len(in.Data)),
		ProcessingStatus: imaging.ProcessingStatusCompleted,
		Institution:      in.Institution,
	}
	if thumbnailKey != "" {
		row.ThumbnailPath = &thumbnailKey
	}
	if err := s.instanceRepo.Upsert(dbc, row); err != nil {
		s.compensate(dbc, assetKey, thumbnailKey)
		wrapped := fmt.Errorf("%w: %v", ErrMetadataPersistence, err)
		s.log.Error("instance persist failed", "sop_uid", in.SOPUID, "error", err)
		return UploadResult{Err: wrapped, Error: wrapped.Error()}
	}

	// On a re-upload the conflict update keeps the original row id; read the
	// canonical row back so the result reports the right instance.
	persisted, err := s.instanceRepo.GetBySOPUID(dbc, in.SOPUID)
	if err == nil && persisted != nil {
		row = persisted
	}

	report(StageComplete, 100)
	return UploadResult{
		Success:       true,
		InstanceID:    row.ID,
		FilePath:      assetKey,
		ThumbnailPath: thumbnailKey,
	}
}

// generateAndStoreThumbnail never fails the upload: any error collapses to
// "no thumbnail" with a warning.
func (s *uploadService) generateAndStoreThumbnail(dbc dbctx.Context, in UploadInput, assetKey string) string {
	thumb, err := s.thumbs.Generate(in.Data)
	if err != nil {
		s.log.Warn("thumbnail generation failed, continuing without",
			"file_path", assetKey, "error", err)
		return ""
	}
	if thumb == nil {
		return ""
	}
	key := ThumbnailKey(assetKey)
	if err := s.store.Upload(dbc.Ctx, gcp.BucketCategoryThumbnail, key, bytes.NewReader(thumb), "image/jpeg"); err != nil {
		s.log.Warn("thumbnail upload failed, continuing without",
			"thumbnail_path", key, "error", err)
		return ""
	}
	return key
}

// compensate removes the just-written objects after a late-stage failure so
// the common case leaves no orphans. A failed compensation is logged, not
// silently accepted: the orphan survives until an operator sweep.
func (s *uploadService) compensate(dbc dbctx.Context, assetKey, thumbnailKey string) {
	if thumbnailKey != "" {
		if err := s.store.Delete(dbc.Ctx, gcp.BucketCategoryThumbnail, thumbnailKey); err != nil {
			s.log.Warn("orphaned thumbnail object left in storage",
				"thumbnail_path", thumbnailKey, "error", err)
		}
	}
	if assetKey != "" {
		if err := s.store.Delete(dbc.Ctx, gcp.BucketCategoryImage, assetKey); err != nil {
			s.log.Warn("orphaned asset object left in storage",
				"file_path", assetKey, "error", err)
		}
	}
}

func (s *uploadService) UploadBatch(dbc dbctx.Context, inputs []UploadInput, onProgress BatchProgressFunc) []UploadResult {
	n := len(inputs)
	results := make([]UploadResult, n)
	if n == 0 {
		return results
	}

	var mu sync.Mutex
	filePct := make([]int, n)
	overall := func() int {
		sum := 0
		for _, p := range filePct {
			sum += p
		}
		return sum / n
	}

	// Default concurrency is 1, i.e. strictly sequential. With a shared
	// transaction callers must keep it at 1; gorm transactions are not
	// goroutine-safe.
	limit := s.concurrency
	if dbc.Tx != nil {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i := range inputs {
		g.Go(func() error {
			if dbc.Ctx != nil && dbc.Ctx.Err() != nil {
				// Cancellation is a distinct terminal state, not a failure.
				results[i] = UploadResult{
					Canceled: true,
					Err:      ErrUploadCanceled,
					Error:    ErrUploadCanceled.Error(),
				}
				return nil
			}
			progress := func(stage UploadStage, pct int) {
				mu.Lock()
				filePct[i] = pct
				ov := overall()
				mu.Unlock()
				if onProgress != nil {
					onProgress(i, n, stage, pct, ov)
				}
			}
			results[i] = s.Upload(dbc, inputs[i], progress)
			mu.Lock()
			filePct[i] = 100
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}
