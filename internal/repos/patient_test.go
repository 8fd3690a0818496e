package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/radview/radview-backend/internal/domain/imaging"
	"github.com/radview/radview-backend/internal/platform/dbctx"
	"github.com/radview/radview-backend/internal/repos/testutil"
)

func TestPatientCreateAndLookup(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewPatientRepo(db, testutil.Logger(t))

	row := &imaging.Patient{
		ID:          uuid.New(),
		PatientID:   "P-" + uuid.NewString(),
		PatientName: "DOE^JOHN",
		Institution: "general-hospital",
	}
	if err := repo.Create(dbc, row); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByExternalID(dbc, row.PatientID, row.Institution)
	if err != nil {
		t.Fatalf("GetByExternalID: %v", err)
	}
	if got == nil || got.ID != row.ID {
		t.Fatalf("lookup returned wrong row: %+v", got)
	}

	byID, err := repo.GetByID(dbc, row.ID)
	if err != nil || byID == nil || byID.PatientID != row.PatientID {
		t.Fatalf("GetByID: row=%+v err=%v", byID, err)
	}
}

func TestPatientLookupMissingReturnsNilNil(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewPatientRepo(db, testutil.Logger(t))

	got, err := repo.GetByExternalID(dbc, "P-"+uuid.NewString(), "nowhere")
	if err != nil {
		t.Fatalf("missing row must not error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing row, got %+v", got)
	}
}

func TestPatientDuplicateExternalIDIsUniqueViolation(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewPatientRepo(db, testutil.Logger(t))

	externalID := "P-" + uuid.NewString()
	first := &imaging.Patient{ID: uuid.New(), PatientID: externalID, Institution: "general-hospital"}
	if err := repo.Create(dbc, first); err != nil {
		t.Fatalf("Create: %v", err)
	}

	dup := &imaging.Patient{ID: uuid.New(), PatientID: externalID, Institution: "general-hospital"}
	err := repo.Create(dbc, dup)
	if err == nil {
		t.Fatal("expected a unique violation")
	}
	if !IsUniqueViolation(err) {
		t.Fatalf("IsUniqueViolation(%v) = false", err)
	}
}
