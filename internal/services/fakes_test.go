package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/radview/radview-backend/internal/domain/imaging"
	"github.com/radview/radview-backend/internal/platform/dbctx"
	"github.com/radview/radview-backend/internal/platform/gcp"
	"github.com/radview/radview-backend/internal/platform/logger"
)

func testLogger(tb testing.TB) *logger.Logger {
	tb.Helper()
	log, err := logger.New("test")
	if err != nil {
		tb.Fatalf("failed to init logger: %v", err)
	}
	return log
}

func testDBC() dbctx.Context {
	return dbctx.Context{Ctx: context.Background()}
}

// memStore is an in-memory ObjectStore that records every operation in
// order, so tests can assert both contents and call sequencing.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	ops     []string

	failUpload map[gcp.BucketCategory]error
	failDelete map[gcp.BucketCategory]error
}

func newMemStore() *memStore {
	return &memStore{
		objects:    make(map[string][]byte),
		failUpload: make(map[gcp.BucketCategory]error),
		failDelete: make(map[gcp.BucketCategory]error),
	}
}

func storeKey(category gcp.BucketCategory, key string) string {
	return string(category) + "/" + key
}

func (m *memStore) record(op string, category gcp.BucketCategory, key string) {
	m.ops = append(m.ops, fmt.Sprintf("%s:%s:%s", op, category, key))
}

func (m *memStore) Upload(ctx context.Context, category gcp.BucketCategory, key string, file io.Reader, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("upload", category, key)
	if err := m.failUpload[category]; err != nil {
		return err
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	m.objects[storeKey(category, key)] = data
	return nil
}

func (m *memStore) Download(ctx context.Context, category gcp.BucketCategory, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[storeKey(category, key)]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStore) Delete(ctx context.Context, category gcp.BucketCategory, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("delete", category, key)
	if err := m.failDelete[category]; err != nil {
		return err
	}
	delete(m.objects, storeKey(category, key))
	return nil
}

func (m *memStore) Exists(ctx context.Context, category gcp.BucketCategory, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[storeKey(category, key)]
	return ok, nil
}

func (m *memStore) GetObjectAttrs(ctx context.Context, category gcp.BucketCategory, key string) (*gcp.ObjectAttrs, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[storeKey(category, key)]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return &gcp.ObjectAttrs{Size: int64(len(data))}, nil
}

func (m *memStore) ListKeys(ctx context.Context, category gcp.BucketCategory, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	p := storeKey(category, prefix)
	for k := range m.objects {
		if len(k) >= len(p) && k[:len(p)] == p {
			out = append(out, k[len(string(category))+1:])
		}
	}
	return out, nil
}

func (m *memStore) DeletePrefix(ctx context.Context, category gcp.BucketCategory, prefix string) error {
	keys, _ := m.ListKeys(ctx, category, prefix)
	for _, k := range keys {
		_ = m.Delete(ctx, category, k)
	}
	return nil
}

func (m *memStore) SignedURL(ctx context.Context, category gcp.BucketCategory, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[storeKey(category, key)]; !ok {
		return "", nil
	}
	return fmt.Sprintf("https://signed.example/%s/%s?ttl=%d", category, key, int64(ttl.Seconds())), nil
}

func (m *memStore) has(category gcp.BucketCategory, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[storeKey(category, key)]
	return ok
}

func (m *memStore) opLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.ops))
	copy(out, m.ops)
	return out
}

// In-memory hierarchy repos. A non-nil createErr is returned once on the
// next Create so tests can simulate losing a creation race.

type memPatientRepo struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]*imaging.Patient
	createErr error
	creates   int
}

func newMemPatientRepo() *memPatientRepo {
	return &memPatientRepo{rows: make(map[uuid.UUID]*imaging.Patient)}
}

func (r *memPatientRepo) Create(dbc dbctx.Context, row *imaging.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	if r.createErr != nil {
		err := r.createErr
		r.createErr = nil
		return err
	}
	for _, p := range r.rows {
		if p.PatientID == row.PatientID && p.Institution == row.Institution {
			return gorm.ErrDuplicatedKey
		}
	}
	cp := *row
	r.rows[row.ID] = &cp
	return nil
}

func (r *memPatientRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*imaging.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.rows[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r *memPatientRepo) GetByExternalID(dbc dbctx.Context, patientID, institution string) (*imaging.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.rows {
		if p.PatientID == patientID && (institution == "" || p.Institution == institution) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memPatientRepo) List(dbc dbctx.Context, institution string, limit, offset int) ([]*imaging.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*imaging.Patient
	for _, p := range r.rows {
		if institution == "" || p.Institution == institution {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memStudyRepo struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]*imaging.Study
	createErr error
	merges    []string
}

func newMemStudyRepo() *memStudyRepo {
	return &memStudyRepo{rows: make(map[uuid.UUID]*imaging.Study)}
}

func (r *memStudyRepo) Create(dbc dbctx.Context, row *imaging.Study) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		err := r.createErr
		r.createErr = nil
		return err
	}
	for _, s := range r.rows {
		if s.StudyInstanceUID == row.StudyInstanceUID {
			return gorm.ErrDuplicatedKey
		}
	}
	cp := *row
	r.rows[row.ID] = &cp
	return nil
}

func (r *memStudyRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*imaging.Study, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.rows[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (r *memStudyRepo) GetByStudyUID(dbc dbctx.Context, studyUID string) (*imaging.Study, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.StudyInstanceUID == studyUID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memStudyRepo) ListByPatient(dbc dbctx.Context, patientID uuid.UUID) ([]*imaging.Study, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*imaging.Study
	for _, s := range r.rows {
		if s.PatientID == patientID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memStudyRepo) MergeModality(dbc dbctx.Context, id uuid.UUID, modality string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.merges = append(r.merges, modality)
	return nil
}

type memSeriesRepo struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]*imaging.Series
	createErr error
}

func newMemSeriesRepo() *memSeriesRepo {
	return &memSeriesRepo{rows: make(map[uuid.UUID]*imaging.Series)}
}

func (r *memSeriesRepo) Create(dbc dbctx.Context, row *imaging.Series) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		err := r.createErr
		r.createErr = nil
		return err
	}
	for _, s := range r.rows {
		if s.SeriesInstanceUID == row.SeriesInstanceUID {
			return gorm.ErrDuplicatedKey
		}
	}
	cp := *row
	r.rows[row.ID] = &cp
	return nil
}

func (r *memSeriesRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*imaging.Series, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.rows[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (r *memSeriesRepo) GetBySeriesUID(dbc dbctx.Context, seriesUID string) (*imaging.Series, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.SeriesInstanceUID == seriesUID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memSeriesRepo) ListByStudy(dbc dbctx.Context, studyID uuid.UUID) ([]*imaging.Series, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*imaging.Series
	for _, s := range r.rows {
		if s.StudyID == studyID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memInstanceRepo struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]*imaging.Instance
	upsertErr error
}

func newMemInstanceRepo() *memInstanceRepo {
	return &memInstanceRepo{rows: make(map[uuid.UUID]*imaging.Instance)}
}

func (r *memInstanceRepo) Upsert(dbc dbctx.Context, row *imaging.Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		err := r.upsertErr
		r.upsertErr = nil
		return err
	}
	for _, existing := range r.rows {
		if existing.SOPInstanceUID == row.SOPInstanceUID {
			existing.FilePath = row.FilePath
			existing.ThumbnailPath = row.ThumbnailPath
			existing.FileSizeBytes = row.FileSizeBytes
			existing.ProcessingStatus = row.ProcessingStatus
			return nil
		}
	}
	cp := *row
	r.rows[row.ID] = &cp
	return nil
}

func (r *memInstanceRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*imaging.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[id]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, nil
}

func (r *memInstanceRepo) GetBySOPUID(dbc dbctx.Context, sopUID string) (*imaging.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.SOPInstanceUID == sopUID {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memInstanceRepo) ListBySeries(dbc dbctx.Context, seriesID uuid.UUID) ([]*imaging.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*imaging.Instance
	for _, row := range r.rows {
		if row.SeriesID == seriesID {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memInstanceRepo) CountBySeries(dbc dbctx.Context, seriesID uuid.UUID) (int64, error) {
	rows, _ := r.ListBySeries(dbc, seriesID)
	return int64(len(rows)), nil
}

func (r *memInstanceRepo) FullDeleteByID(dbc dbctx.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}
