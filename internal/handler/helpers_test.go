package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/gema-grader/internal/config"
	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/errlog"
	"github.com/noah-isme/gema-grader/internal/handler"
	"github.com/noah-isme/gema-grader/internal/middleware"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/repository"
	"github.com/noah-isme/gema-grader/internal/router"
	"github.com/noah-isme/gema-grader/internal/service"
	"github.com/noah-isme/gema-grader/internal/worker"
	"github.com/noah-isme/gema-grader/pkg/ai"
)

type testEnv struct {
	app    *fiber.App
	db     *gorm.DB
	queue  *switchQueue
	events service.GradeEventService
	errors *bytes.Buffer

	instructor models.Instructor
	student    models.Student
	outsider   models.Student
	admin      models.Admin
	class      models.Class
}

type stubGrader struct {
	result ai.GradeResult
	err    error
}

func (s stubGrader) Grade(context.Context, ai.GradeRequest) (ai.GradeResult, error) {
	return s.result, s.err
}

func (s stubGrader) Provider() string { return "stub" }

type memoryStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (m *memoryStorage) Save(_ context.Context, name string, reader io.Reader) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = data
	return "https://files.test/" + name, nil
}

// switchQueue runs tasks inline until it is marked full.
type switchQueue struct {
	mu   sync.Mutex
	full bool
}

func (q *switchQueue) Submit(task worker.Task) error {
	q.mu.Lock()
	full := q.full
	q.mu.Unlock()
	if full {
		return worker.ErrQueueFull
	}
	task(context.Background())
	return nil
}

func (q *switchQueue) setFull(full bool) {
	q.mu.Lock()
	q.full = full
	q.mu.Unlock()
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	env := &testEnv{db: db, queue: &switchQueue{}, errors: &bytes.Buffer{}}
	env.seed(t)

	log := zerolog.New(io.Discard)
	validate := validator.New(validator.WithRequiredStructEnabled())
	errorLog := errlog.New(env.errors)

	students := repository.NewStudentRepository(db)
	instructors := repository.NewInstructorRepository(db)
	admins := repository.NewAdminRepository(db)
	classes := repository.NewClassRepository(db)
	assignments := repository.NewAssignmentRepository(db)
	comments := repository.NewCommentRepository(db)

	env.events = service.NewGradeEventService(nil, "", log)
	dashboards := service.NewDashboardService(students, instructors, classes, assignments, redisClient, time.Minute, log)
	env.events.AddListener(func(event dto.GradeEvent) {
		dashboards.Invalidate(context.Background(), event.ClassID)
	})

	grading := service.NewGradingService(stubGrader{result: ai.GradeResult{Grade: "A-", Feedback: "Clear argument."}}, errorLog, time.Second, log)
	submissions := service.NewSubmissionService(service.SubmissionServiceConfig{
		Students:    students,
		Classes:     classes,
		Assignments: assignments,
		Storage:     &memoryStorage{files: make(map[string][]byte)},
		Grading:     grading,
		Events:      env.events,
		Queue:       env.queue,
		ErrorLog:    errorLog,
		Validator:   validate,
		MaxSizeMB:   1,
		Logger:      log,
	})
	auth := service.NewAuthService(students, instructors, admins, redisClient, "secret", time.Hour, validate, log)
	commentService := service.NewCommentService(assignments, comments, dashboards, validate, log)
	roster := service.NewRosterService(repository.NewRosterRepository(db), errorLog, log)

	cfg := config.Config{AppName: "Grader Test", AppEnv: "test", UploadRateLimit: 100}
	app := fiber.New()
	middleware.Register(app, middleware.Config{})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:        handler.NewAuthHandler(auth, false, log),
		StudentHandler:     handler.NewStudentHandler(dashboards, submissions, commentService, validate, 1, log),
		InstructorHandler:  handler.NewInstructorHandler(dashboards, commentService, log),
		AdminHandler:       handler.NewAdminHandler(dashboards, roster, log),
		DownloadHandler:    handler.NewDownloadHandler(dashboards, log),
		GradeStreamHandler: handler.NewGradeStreamHandler(env.events, log),
		SessionMiddleware:  middleware.SessionAuth(auth),
		GradingStats: func() map[string]interface{} {
			return map[string]interface{}{"queued": 0}
		},
	})
	env.app = app

	return env
}

func (e *testEnv) seed(t *testing.T) {
	t.Helper()

	e.instructor = models.Instructor{Name: "Dr. A", Email: "a@x.edu"}
	require.NoError(t, e.db.Create(&e.instructor).Error)
	e.admin = models.Admin{Name: "Root", Email: "root@x.edu"}
	require.NoError(t, e.db.Create(&e.admin).Error)
	e.student = models.Student{Name: "Sam", Email: "s1@x.edu"}
	require.NoError(t, e.db.Create(&e.student).Error)
	e.outsider = models.Student{Name: "Pat", Email: "s2@x.edu"}
	require.NoError(t, e.db.Create(&e.outsider).Error)

	e.class = models.Class{Name: "EC530", Year: 2024, Semester: models.SemesterSpring, InstructorID: e.instructor.ID}
	require.NoError(t, e.db.Omit("Instructor", "Students").Create(&e.class).Error)
	require.NoError(t, e.db.Table("class_students").Create(map[string]interface{}{
		"class_id":   e.class.ID,
		"student_id": e.student.ID,
	}).Error)
}

func (e *testEnv) createAssignment(t *testing.T, studentID uint, fileURL string) models.Assignment {
	t.Helper()

	classID := e.class.ID
	assignment := models.Assignment{
		Filename:      "essay.txt",
		FileURL:       fileURL,
		Grade:         "B+",
		Feedback:      "Solid.",
		GradingStatus: models.GradingStatusGraded,
		StudentID:     studentID,
		ClassID:       &classID,
	}
	require.NoError(t, e.db.Omit("Student", "Class", "Comment").Create(&assignment).Error)
	return assignment
}

func (e *testEnv) login(t *testing.T, email string) string {
	t.Helper()

	resp := e.do(t, http.MethodPost, "/api/v1/auth/login", "", jsonBody(t, dto.LoginRequest{Email: email}), fiber.MIMEApplicationJSON)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Data dto.SessionResponse `json:"data"`
	}
	decodeBody(t, resp, &payload)
	require.NotEmpty(t, payload.Data.Token)
	return payload.Data.Token
}

func (e *testEnv) do(t *testing.T, method, target, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(fiber.HeaderContentType, contentType)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func jsonBody(t *testing.T, value interface{}) io.Reader {
	t.Helper()

	raw, err := json.Marshal(value)
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

func decodeBody(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()

	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func multipartBody(t *testing.T, fields map[string]string, fileField, filename string, content []byte) (io.Reader, string) {
	t.Helper()

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return buf, writer.FormDataContentType()
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
