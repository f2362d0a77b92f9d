package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/errlog"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/observability"
	"github.com/noah-isme/gema-grader/internal/repository"
)

var (
	// ErrRosterMalformed indicates the document could not be read as CSV.
	ErrRosterMalformed = errors.New("roster is not a readable csv document")
	// ErrRosterMissingType indicates the header row has no type column.
	ErrRosterMissingType = errors.New("roster header must contain a type column")
)

const (
	rosterRowStudent    = "student"
	rosterRowInstructor = "instructor"
	rosterRowClass      = "class"
)

// RosterService reconciles CSV rosters into students, instructors, classes and enrollments.
type RosterService interface {
	Import(ctx context.Context, data []byte) (dto.RosterImportResult, error)
}

type rosterService struct {
	repo   repository.RosterRepository
	errors *errlog.Log
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewRosterService constructs a roster importer.
func NewRosterService(repo repository.RosterRepository, errorLog *errlog.Log, logger zerolog.Logger) RosterService {
	if errorLog == nil {
		errorLog = errlog.Nop()
	}
	return &rosterService{
		repo:   repo,
		errors: errorLog,
		logger: logger.With().Str("component", "roster_service").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/gema-grader/internal/service/roster"),
	}
}

type rosterRow map[string]string

func (r rosterRow) get(key string) string {
	return strings.TrimSpace(r[key])
}

func (s *rosterService) Import(ctx context.Context, data []byte) (dto.RosterImportResult, error) {
	ctx, span := s.tracer.Start(ctx, "roster.import", trace.WithAttributes(attribute.Int("roster.bytes", len(data))))
	defer span.End()

	rows, err := parseRoster(data)
	if err != nil {
		span.RecordError(err)
		s.errors.Recordf("Roster import failed: %v", err)
		return dto.RosterImportResult{}, err
	}

	var result dto.RosterImportResult
	err = s.repo.WithinTransaction(ctx, func(store repository.RosterStore) error {
		result = dto.RosterImportResult{}
		for _, row := range rows {
			imported, err := s.applyRow(ctx, store, row, &result)
			if err != nil {
				return err
			}
			if !imported {
				result.RowsSkipped++
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		s.errors.Recordf("Roster import failed: %v", err)
		return dto.RosterImportResult{}, fmt.Errorf("import roster: %w", err)
	}

	observability.RosterRows().WithLabelValues("imported").Add(float64(len(rows) - result.RowsSkipped))
	observability.RosterRows().WithLabelValues("skipped").Add(float64(result.RowsSkipped))

	span.SetAttributes(
		attribute.Int("roster.students_inserted", result.StudentsInserted),
		attribute.Int("roster.instructors_inserted", result.InstructorsInserted),
		attribute.Int("roster.classes_inserted", result.ClassesInserted),
		attribute.Int("roster.enrollments_added", result.EnrollmentsAdded),
	)
	s.logger.Info().
		Int("rows", len(rows)).
		Int("students_inserted", result.StudentsInserted).
		Int("instructors_inserted", result.InstructorsInserted).
		Int("classes_inserted", result.ClassesInserted).
		Int("enrollments_added", result.EnrollmentsAdded).
		Int("rows_skipped", result.RowsSkipped).
		Msg("roster imported")

	return result, nil
}

// applyRow reports whether the row was usable. Only store failures are returned as errors.
func (s *rosterService) applyRow(ctx context.Context, store repository.RosterStore, row rosterRow, result *dto.RosterImportResult) (bool, error) {
	switch strings.ToLower(row.get("type")) {
	case rosterRowStudent:
		return s.importStudent(ctx, store, row, result)
	case rosterRowInstructor:
		return s.importInstructor(ctx, store, row, result)
	case rosterRowClass:
		return s.importClass(ctx, store, row, result)
	default:
		return false, nil
	}
}

func (s *rosterService) importStudent(ctx context.Context, store repository.RosterStore, row rosterRow, result *dto.RosterImportResult) (bool, error) {
	name, email := row.get("name"), row.get("email")
	if name == "" || email == "" {
		return false, nil
	}

	_, found, err := store.FindStudentByEmail(ctx, email)
	if err != nil || found {
		return true, err
	}

	if err := store.CreateStudent(ctx, &models.Student{Name: name, Email: email}); err != nil {
		return false, err
	}
	result.StudentsInserted++
	return true, nil
}

func (s *rosterService) importInstructor(ctx context.Context, store repository.RosterStore, row rosterRow, result *dto.RosterImportResult) (bool, error) {
	name, email := row.get("name"), row.get("email")
	if name == "" || email == "" {
		return false, nil
	}

	_, found, err := store.FindInstructorByEmail(ctx, email)
	if err != nil || found {
		return true, err
	}

	if err := store.CreateInstructor(ctx, &models.Instructor{Name: name, Email: email}); err != nil {
		return false, err
	}
	result.InstructorsInserted++
	return true, nil
}

func (s *rosterService) importClass(ctx context.Context, store repository.RosterStore, row rosterRow, result *dto.RosterImportResult) (bool, error) {
	name := row.get("name")
	instructorEmail := row.get("instructor_email")
	if name == "" || row.get("year") == "" || row.get("semester") == "" || instructorEmail == "" {
		return false, nil
	}

	instructor, found, err := store.FindInstructorByEmail(ctx, instructorEmail)
	if err != nil {
		return false, err
	}
	if !found {
		s.logger.Debug().Str("class", name).Str("instructor_email", instructorEmail).Msg("class skipped, instructor not found")
		return false, nil
	}

	class, found, err := store.FindClassByName(ctx, name)
	if err != nil {
		return false, err
	}
	if !found {
		// Year and semester only matter when the class is created.
		year, err := strconv.Atoi(row.get("year"))
		if err != nil {
			return false, nil
		}
		semester, ok := models.ParseSemester(row.get("semester"))
		if !ok {
			return false, nil
		}

		class = models.Class{Name: name, Year: year, Semester: semester, InstructorID: instructor.ID}
		if err := store.CreateClass(ctx, &class); err != nil {
			return false, err
		}
		result.ClassesInserted++
	}

	for _, email := range strings.Split(row.get("student_emails"), ",") {
		email = strings.TrimSpace(email)
		if email == "" {
			continue
		}

		student, found, err := store.FindStudentByEmail(ctx, email)
		if err != nil {
			return false, err
		}
		if !found {
			s.logger.Debug().Str("class", name).Str("email", email).Msg("enrollment skipped, student not found")
			continue
		}

		enrolled, err := store.IsEnrolled(ctx, class.ID, student.ID)
		if err != nil {
			return false, err
		}
		if enrolled {
			continue
		}
		if err := store.Enroll(ctx, class.ID, student.ID); err != nil {
			return false, err
		}
		result.EnrollmentsAdded++
	}

	return true, nil
}

func parseRoster(data []byte) ([]rosterRow, error) {
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrRosterMissingType
		}
		return nil, fmt.Errorf("%w: %v", ErrRosterMalformed, err)
	}

	columns := make([]string, len(header))
	hasType := false
	for i, column := range header {
		columns[i] = strings.ToLower(strings.TrimSpace(column))
		if columns[i] == "type" {
			hasType = true
		}
	}
	if !hasType {
		return nil, ErrRosterMissingType
	}

	var rows []rosterRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRosterMalformed, err)
		}

		row := make(rosterRow, len(columns))
		for i, column := range columns {
			if i < len(record) {
				row[column] = record[i]
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}
