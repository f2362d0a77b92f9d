package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/worker"
	"github.com/noah-isme/gema-grader/pkg/ai"
)

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

type seededClass struct {
	Instructor models.Instructor
	Class      models.Class
	Student    models.Student
}

func seedClassWithStudent(t *testing.T, db *gorm.DB, className string) seededClass {
	t.Helper()

	instructor := models.Instructor{Name: "Dr. A", Email: "a@x.edu"}
	require.NoError(t, db.Create(&instructor).Error)

	student := models.Student{Name: "Sam", Email: "s1@x.edu"}
	require.NoError(t, db.Create(&student).Error)

	class := models.Class{Name: className, Year: 2024, Semester: models.SemesterFall, InstructorID: instructor.ID}
	require.NoError(t, db.Omit("Instructor", "Students").Create(&class).Error)
	require.NoError(t, db.Table("class_students").Create(map[string]interface{}{
		"class_id":   class.ID,
		"student_id": student.ID,
	}).Error)

	return seededClass{Instructor: instructor, Class: class, Student: student}
}

type stubGrader struct {
	mu       sync.Mutex
	result   ai.GradeResult
	err      error
	requests []ai.GradeRequest
}

func (s *stubGrader) Grade(ctx context.Context, req ai.GradeRequest) (ai.GradeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return s.result, s.err
}

func (s *stubGrader) Provider() string { return "stub" }

func (s *stubGrader) lastRequest() ai.GradeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return ai.GradeRequest{}
	}
	return s.requests[len(s.requests)-1]
}

type memoryStorage struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{files: make(map[string][]byte)}
}

func (m *memoryStorage) Save(ctx context.Context, name string, reader io.Reader) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = buf.Bytes()
	return "documents/" + name, nil
}

// inlineQueue runs tasks on the caller's goroutine.
type inlineQueue struct {
	err error
}

func (q inlineQueue) Submit(task worker.Task) error {
	if q.err != nil {
		return q.err
	}
	task(context.Background())
	return nil
}
