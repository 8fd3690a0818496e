package services

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/radview/radview-backend/internal/domain/imaging"
	"github.com/radview/radview-backend/internal/platform/dbctx"
	"github.com/radview/radview-backend/internal/platform/logger"
	"github.com/radview/radview-backend/internal/repos"
)

type ResolveInput struct {
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
}

type ResolvedHierarchy struct {
	PatientID uuid.UUID
	StudyID   uuid.UUID
	SeriesID  uuid.UUID
}

// HierarchyResolver ensures the Patient, Study and Series rows referenced by
// an upload exist, creating any that are missing, and returns their internal
// ids. Levels resolve strictly top-down: a Study insert needs the Patient's
// internal id, a Series insert needs the Study's.
//
// There is no lock around lookup-then-insert. Two concurrent first uploads
// for the same UID can both see "not found" and race on the unique index;
// the loser re-reads exactly once and adopts the winner's row. One retry,
// then ErrEntityResolution.
type HierarchyResolver interface {
	Resolve(dbc dbctx.Context, in ResolveInput) (ResolvedHierarchy, error)
}

type hierarchyResolver struct {
	log         *logger.Logger
	patientRepo repos.PatientRepo
	studyRepo   repos.StudyRepo
	seriesRepo  repos.SeriesRepo
}

func NewHierarchyResolver(
	baseLog *logger.Logger,
	patientRepo repos.PatientRepo,
	studyRepo repos.StudyRepo,
	seriesRepo repos.SeriesRepo,
) HierarchyResolver {
	return &hierarchyResolver{
		log:         baseLog.With("service", "HierarchyResolver"),
		patientRepo: patientRepo,
		studyRepo:   studyRepo,
		seriesRepo:  seriesRepo,
	}
}

func (hr *hierarchyResolver) Resolve(dbc dbctx.Context, in ResolveInput) (ResolvedHierarchy, error) {
	var out ResolvedHierarchy

	patient, err := hr.ensurePatient(dbc, in)
	if err != nil {
		return out, fmt.Errorf("%w: patient %s: %v", ErrEntityResolution, in.PatientID, err)
	}
	out.PatientID = patient.ID

	study, err := hr.ensureStudy(dbc, in, patient.ID)
	if err != nil {
		return out, fmt.Errorf("%w: study: %v", ErrEntityResolution, err)
	}
	out.StudyID = study.ID

	series, err := hr.ensureSeries(dbc, in, study.ID)
	if err != nil {
		return out, fmt.Errorf("%w: series: %v", ErrEntityResolution, err)
	}
	out.SeriesID = series.ID

	return out, nil
}

func (hr *hierarchyResolver) ensurePatient(dbc dbctx.Context, in ResolveInput) (*imaging.Patient, error) {
	existing, err := hr.patientRepo.GetByExternalID(dbc, in.PatientID, in.Institution)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	row := &imaging.Patient{
		ID:          uuid.New(),
		PatientID:   in.PatientID,
		PatientName: in.PatientName,
		Institution: in.Institution,
	}
	if err := hr.patientRepo.Create(dbc, row); err != nil {
		if !repos.IsUniqueViolation(err) {
			return nil, err
		}
		hr.log.Debug("patient insert lost creation race, re-reading",
			"patient_id", in.PatientID)
		existing, lookupErr := hr.patientRepo.GetByExternalID(dbc, in.PatientID, in.Institution)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if existing == nil {
			return nil, err
		}
		return existing, nil
	}
	return row, nil
}

func (hr *hierarchyResolver) ensureStudy(dbc dbctx.Context, in ResolveInput, patientID uuid.UUID) (*imaging.Study, error) {
	existing, err := hr.studyRepo.GetByStudyUID(dbc, in.StudyUID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// A study accumulates the modalities of every series seen under it.
		if err := hr.studyRepo.MergeModality(dbc, existing.ID, in.Modality); err != nil {
			hr.log.Warn("modality merge failed", "study_uid", in.StudyUID, "error", err)
		}
		return existing, nil
	}

	row := &imaging.Study{
		ID:               uuid.New(),
		StudyInstanceUID: in.StudyUID,
		PatientID:        patientID,
		Description:      in.StudyDescription,
		StudyDate:        in.StudyDate,
		Modalities:       modalitiesJSON(in.Modality),
		Institution:      in.Institution,
	}
	if err := hr.studyRepo.Create(dbc, row); err != nil {
		if !repos.IsUniqueViolation(err) {
			return nil, err
		}
		hr.log.Debug("study insert lost creation race, re-reading",
			"study_uid", in.StudyUID)
		existing, lookupErr := hr.studyRepo.GetByStudyUID(dbc, in.StudyUID)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if existing == nil {
			return nil, err
		}
		if mergeErr := hr.studyRepo.MergeModality(dbc, existing.ID, in.Modality); mergeErr != nil {
			hr.log.Warn("modality merge failed", "study_uid", in.StudyUID, "error", mergeErr)
		}
		return existing, nil
	}
	return row, nil
}

func (hr *hierarchyResolver) ensureSeries(dbc dbctx.Context, in ResolveInput, studyID uuid.UUID) (*imaging.Series, error) {
	existing, err := hr.seriesRepo.GetBySeriesUID(dbc, in.SeriesUID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	row := &imaging.Series{
		ID:                uuid.New(),
		SeriesInstanceUID: in.SeriesUID,
		StudyID:           studyID,
		Modality:          in.Modality,
		BodyPart:          in.BodyPart,
		Description:       in.SeriesDescription,
		Institution:       in.Institution,
	}
	if err := hr.seriesRepo.Create(dbc, row); err != nil {
		if !repos.IsUniqueViolation(err) {
			return nil, err
		}
		hr.log.Debug("series insert lost creation race, re-reading",
			"series_uid", in.SeriesUID)
		existing, lookupErr := hr.seriesRepo.GetBySeriesUID(dbc, in.SeriesUID)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if existing == nil {
			return nil, err
		}
		return existing, nil
	}
	return row, nil
}

func modalitiesJSON(modality string) datatypes.JSON {
	set := []string{}
	if modality != "" {
		set = append(set, modality)
	}
	raw, _ := json.Marshal(set)
	return datatypes.JSON(raw)
}
