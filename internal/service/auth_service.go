package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/repository"
)

var (
	// ErrUserNotFound indicates no student, instructor or admin has the email.
	ErrUserNotFound = errors.New("no account registered for this email")
	// ErrInvalidSession indicates a token that is malformed, expired or revoked.
	ErrInvalidSession = errors.New("session is invalid or expired")
)

const sessionKeyPrefix = "grader:session:"

var landingRoutes = map[string]string{
	models.RoleStudent:    "/api/v1/student/classes",
	models.RoleInstructor: "/api/v1/instructor/dashboard",
	models.RoleAdmin:      "/api/v1/admin/dashboard",
}

// Session is the server-side record behind a token.
type Session struct {
	ID        string    `json:"id"`
	UserID    uint      `json:"user_id"`
	Role      string    `json:"role"`
	Name      string    `json:"name"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionClaims are signed into every session token.
type SessionClaims struct {
	Role      string `json:"role"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// AuthService issues and validates role sessions.
type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (dto.SessionResponse, error)
	Validate(ctx context.Context, token string) (Session, error)
	Logout(ctx context.Context, sessionID string) error
}

type authService struct {
	students    repository.StudentRepository
	instructors repository.InstructorRepository
	admins      repository.AdminRepository
	redis       *redis.Client
	secret      []byte
	ttl         time.Duration
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAuthService constructs an auth service backed by redis sessions.
func NewAuthService(students repository.StudentRepository, instructors repository.InstructorRepository, admins repository.AdminRepository, redisClient *redis.Client, secret string, ttl time.Duration, validate *validator.Validate, logger zerolog.Logger) AuthService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if validate == nil {
		validate = validator.New()
	}

	return &authService{
		students:    students,
		instructors: instructors,
		admins:      admins,
		redis:       redisClient,
		secret:      []byte(secret),
		ttl:         ttl,
		validator:   validate,
		logger:      logger.With().Str("component", "auth_service").Logger(),
		now:         time.Now,
	}
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (dto.SessionResponse, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return dto.SessionResponse{}, err
	}

	userID, role, name, err := s.resolve(ctx, req.Email)
	if err != nil {
		return dto.SessionResponse{}, err
	}

	now := s.now().UTC()
	session := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Role:      role,
		Name:      name,
		ExpiresAt: now.Add(s.ttl),
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return dto.SessionResponse{}, err
	}
	if err := s.redis.Set(ctx, sessionKeyPrefix+session.ID, payload, s.ttl).Err(); err != nil {
		return dto.SessionResponse{}, fmt.Errorf("store session: %w", err)
	}

	claims := SessionClaims{
		Role:      role,
		SessionID: session.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return dto.SessionResponse{}, fmt.Errorf("sign session token: %w", err)
	}

	s.logger.Info().Uint("user_id", userID).Str("role", role).Msg("session created")

	return dto.SessionResponse{
		Token:     token,
		Role:      role,
		UserID:    userID,
		Name:      name,
		ExpiresAt: session.ExpiresAt,
		Redirect:  landingRoutes[role],
	}, nil
}

func (s *authService) resolve(ctx context.Context, email string) (uint, string, string, error) {
	student, err := s.students.GetByEmail(ctx, email)
	if err == nil {
		return student.ID, models.RoleStudent, student.Name, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, "", "", err
	}

	instructor, err := s.instructors.GetByEmail(ctx, email)
	if err == nil {
		return instructor.ID, models.RoleInstructor, instructor.Name, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, "", "", err
	}

	admin, err := s.admins.GetByEmail(ctx, email)
	if err == nil {
		return admin.ID, models.RoleAdmin, admin.Name, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, "", "", ErrUserNotFound
	}
	return 0, "", "", err
}

func (s *authService) Validate(ctx context.Context, token string) (Session, error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid || claims.SessionID == "" {
		return Session{}, ErrInvalidSession
	}

	raw, err := s.redis.Get(ctx, sessionKeyPrefix+claims.SessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrInvalidSession
		}
		return Session{}, fmt.Errorf("load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return Session{}, ErrInvalidSession
	}

	if strconv.FormatUint(uint64(session.UserID), 10) != claims.Subject || session.Role != claims.Role {
		return Session{}, ErrInvalidSession
	}

	return session, nil
}

func (s *authService) Logout(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidSession
	}
	if err := s.redis.Del(ctx, sessionKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.logger.Info().Str("session_id", sessionID).Msg("session revoked")
	return nil
}
