package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/repository"
)

var (
	// ErrAssignmentNotFound indicates the requested assignment does not exist.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrAssignmentForbidden indicates the caller may not access the assignment.
	ErrAssignmentForbidden = errors.New("you are not allowed to access this assignment")
)

const (
	dashboardCachePrefix = "grader:dashboard:"
	adminDashboardKey    = dashboardCachePrefix + "admin"
)

// DashboardService builds the read views for students, instructors and admins.
type DashboardService interface {
	StudentClasses(ctx context.Context, studentID uint) ([]dto.ClassSummary, error)
	StudentResults(ctx context.Context, studentID uint) ([]dto.AssignmentResult, error)
	InstructorDashboard(ctx context.Context, instructorID uint) (dto.InstructorDashboardResponse, error)
	AdminDashboard(ctx context.Context) (dto.AdminDashboardResponse, error)
	DownloadTarget(ctx context.Context, assignmentID, userID uint, role string) (dto.DownloadTarget, error)
	Invalidate(ctx context.Context, classID uint)
	InvalidateAll(ctx context.Context)
}

type dashboardService struct {
	students    repository.StudentRepository
	instructors repository.InstructorRepository
	classes     repository.ClassRepository
	assignments repository.AssignmentRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
}

// NewDashboardService constructs a dashboard service. cache may be nil.
func NewDashboardService(students repository.StudentRepository, instructors repository.InstructorRepository, classes repository.ClassRepository, assignments repository.AssignmentRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) DashboardService {
	return &dashboardService{
		students:    students,
		instructors: instructors,
		classes:     classes,
		assignments: assignments,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "dashboard_service").Logger(),
	}
}

func (s *dashboardService) StudentClasses(ctx context.Context, studentID uint) ([]dto.ClassSummary, error) {
	classes, err := s.students.ListClasses(ctx, studentID)
	if err != nil {
		return nil, err
	}

	summaries := make([]dto.ClassSummary, 0, len(classes))
	for _, class := range classes {
		summaries = append(summaries, dto.NewClassSummary(class))
	}
	return summaries, nil
}

func (s *dashboardService) StudentResults(ctx context.Context, studentID uint) ([]dto.AssignmentResult, error) {
	assignments, err := s.assignments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	results := make([]dto.AssignmentResult, 0, len(assignments))
	for _, assignment := range assignments {
		results = append(results, dto.NewAssignmentResult(assignment))
	}
	return results, nil
}

func (s *dashboardService) InstructorDashboard(ctx context.Context, instructorID uint) (dto.InstructorDashboardResponse, error) {
	cacheKey := instructorDashboardKey(instructorID)

	var response dto.InstructorDashboardResponse
	if s.readCache(ctx, cacheKey, &response) {
		return response, nil
	}

	instructor, err := s.instructors.GetByID(ctx, instructorID)
	if err != nil {
		return dto.InstructorDashboardResponse{}, err
	}

	classes, err := s.classes.ListByInstructor(ctx, instructorID)
	if err != nil {
		return dto.InstructorDashboardResponse{}, err
	}

	views, err := s.buildClassViews(ctx, classes)
	if err != nil {
		return dto.InstructorDashboardResponse{}, err
	}

	response = dto.InstructorDashboardResponse{
		InstructorID: instructor.ID,
		Name:         instructor.Name,
		Classes:      views,
	}
	s.writeCache(ctx, cacheKey, response)
	return response, nil
}

func (s *dashboardService) AdminDashboard(ctx context.Context) (dto.AdminDashboardResponse, error) {
	var response dto.AdminDashboardResponse
	if s.readCache(ctx, adminDashboardKey, &response) {
		return response, nil
	}

	classes, err := s.classes.ListAll(ctx)
	if err != nil {
		return dto.AdminDashboardResponse{}, err
	}

	views, err := s.buildClassViews(ctx, classes)
	if err != nil {
		return dto.AdminDashboardResponse{}, err
	}

	response = dto.AdminDashboardResponse{Classes: views}
	s.writeCache(ctx, adminDashboardKey, response)
	return response, nil
}

func (s *dashboardService) buildClassViews(ctx context.Context, classes []models.Class) ([]dto.ClassDashboard, error) {
	classIDs := make([]uint, 0, len(classes))
	for _, class := range classes {
		classIDs = append(classIDs, class.ID)
	}

	assignments, err := s.assignments.ListByClasses(ctx, classIDs)
	if err != nil {
		return nil, err
	}

	type classStudent struct {
		classID   uint
		studentID uint
	}
	grouped := make(map[classStudent][]dto.AssignmentResult)
	for _, assignment := range assignments {
		if assignment.ClassID == nil {
			continue
		}
		key := classStudent{classID: *assignment.ClassID, studentID: assignment.StudentID}
		grouped[key] = append(grouped[key], dto.NewAssignmentResult(assignment))
	}

	views := make([]dto.ClassDashboard, 0, len(classes))
	for _, class := range classes {
		view := dto.ClassDashboard{
			ClassSummary:    dto.NewClassSummary(class),
			InstructorEmail: class.Instructor.Email,
			Students:        make([]dto.StudentAssignments, 0, len(class.Students)),
		}
		for _, student := range class.Students {
			results := grouped[classStudent{classID: class.ID, studentID: student.ID}]
			if results == nil {
				results = []dto.AssignmentResult{}
			}
			for i := range results {
				results[i].ClassName = class.Name
			}
			view.Students = append(view.Students, dto.StudentAssignments{
				StudentID:   student.ID,
				Name:        student.Name,
				Email:       student.Email,
				Assignments: results,
			})
		}
		views = append(views, view)
	}

	return views, nil
}

func (s *dashboardService) DownloadTarget(ctx context.Context, assignmentID, userID uint, role string) (dto.DownloadTarget, error) {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.DownloadTarget{}, ErrAssignmentNotFound
		}
		return dto.DownloadTarget{}, err
	}

	if !canAccessAssignment(assignment, userID, role) {
		return dto.DownloadTarget{}, ErrAssignmentForbidden
	}

	target := dto.DownloadTarget{Filename: assignment.Filename}
	location := strings.TrimSpace(assignment.FileURL)
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		target.URL = location
	} else {
		target.Path = location
	}
	if target.URL == "" && target.Path == "" {
		return dto.DownloadTarget{}, ErrAssignmentNotFound
	}

	return target, nil
}

func canAccessAssignment(assignment models.Assignment, userID uint, role string) bool {
	switch role {
	case models.RoleAdmin:
		return true
	case models.RoleStudent:
		return assignment.StudentID == userID
	case models.RoleInstructor:
		return assignment.Class != nil && assignment.Class.InstructorID == userID
	default:
		return false
	}
}

func (s *dashboardService) Invalidate(ctx context.Context, classID uint) {
	if s.cache == nil {
		return
	}

	keys := []string{adminDashboardKey}
	if classID != 0 {
		class, err := s.classes.GetByID(ctx, classID)
		if err == nil {
			keys = append(keys, instructorDashboardKey(class.InstructorID))
		} else {
			s.logger.Warn().Err(err).Uint("class_id", classID).Msg("failed to resolve class for cache invalidation")
		}
	}

	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate dashboard cache")
	}
}

func (s *dashboardService) InvalidateAll(ctx context.Context) {
	if s.cache == nil {
		return
	}

	iter := s.cache.Scan(ctx, 0, dashboardCachePrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to scan dashboard cache")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate dashboard cache")
	}
}

func (s *dashboardService) readCache(ctx context.Context, key string, target interface{}) bool {
	if s.cache == nil {
		return false
	}

	cached, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read dashboard cache")
		}
		return false
	}

	if err := json.Unmarshal([]byte(cached), target); err != nil {
		return false
	}
	s.logger.Debug().Str("key", key).Msg("dashboard cache hit")
	return true
}

func (s *dashboardService) writeCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to store dashboard cache")
	}
}

func instructorDashboardKey(instructorID uint) string {
	return fmt.Sprintf("%sinstructor:%d", dashboardCachePrefix, instructorID)
}
