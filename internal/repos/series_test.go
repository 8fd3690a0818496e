package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/radview/radview-backend/internal/domain/imaging"
	"github.com/radview/radview-backend/internal/platform/dbctx"
	"github.com/radview/radview-backend/internal/repos/testutil"
)

func seedSeries(t *testing.T, dbc dbctx.Context, repo SeriesRepo, studyID uuid.UUID) *imaging.Series {
	t.Helper()
	row := &imaging.Series{
		ID:                uuid.New(),
		SeriesInstanceUID: "1.2.840." + uuid.NewString(),
		StudyID:           studyID,
		Modality:          "CT",
		BodyPart:          "CHEST",
		Description:       "AXIAL 5MM",
		Institution:       "general-hospital",
	}
	if err := repo.Create(dbc, row); err != nil {
		t.Fatalf("seed series: %v", err)
	}
	return row
}

func TestSeriesCreateAndLookupByUID(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewSeriesRepo(db, testutil.Logger(t))

	row := seedSeries(t, dbc, repo, uuid.New())

	got, err := repo.GetBySeriesUID(dbc, row.SeriesInstanceUID)
	if err != nil {
		t.Fatalf("GetBySeriesUID: %v", err)
	}
	if got == nil || got.ID != row.ID {
		t.Fatalf("lookup returned wrong row: %+v", got)
	}

	missing, err := repo.GetBySeriesUID(dbc, "1.2.840."+uuid.NewString())
	if err != nil || missing != nil {
		t.Fatalf("missing series must yield (nil, nil), got (%+v, %v)", missing, err)
	}
}

func TestSeriesDuplicateUIDIsUniqueViolation(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewSeriesRepo(db, testutil.Logger(t))

	row := seedSeries(t, dbc, repo, uuid.New())
	dup := &imaging.Series{
		ID:                uuid.New(),
		SeriesInstanceUID: row.SeriesInstanceUID,
		StudyID:           row.StudyID,
	}
	err := repo.Create(dbc, dup)
	if err == nil {
		t.Fatal("expected a unique violation")
	}
	if !IsUniqueViolation(err) {
		t.Fatalf("IsUniqueViolation(%v) = false", err)
	}
}

func TestSeriesListByStudy(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewSeriesRepo(db, testutil.Logger(t))

	studyID := uuid.New()
	seedSeries(t, dbc, repo, studyID)
	seedSeries(t, dbc, repo, studyID)
	seedSeries(t, dbc, repo, uuid.New())

	rows, err := repo.ListByStudy(dbc, studyID)
	if err != nil {
		t.Fatalf("ListByStudy: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 series, got %d", len(rows))
	}
}
