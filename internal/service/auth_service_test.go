package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/repository"
)

func newAuthFixture(t *testing.T) (*authService, *gorm.DB, *miniredis.Miniredis) {
	t.Helper()

	mini, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mini.Close)

	db := setupServiceDB(t)
	svc := NewAuthService(
		repository.NewStudentRepository(db),
		repository.NewInstructorRepository(db),
		repository.NewAdminRepository(db),
		redis.NewClient(&redis.Options{Addr: mini.Addr()}),
		"test-secret",
		time.Hour,
		nil,
		zerolog.Nop(),
	)
	return svc.(*authService), db, mini
}

func TestAuthLoginResolvesRoles(t *testing.T) {
	svc, db, _ := newAuthFixture(t)
	require.NoError(t, db.Create(&models.Student{Name: "Sam", Email: "sam@x.edu"}).Error)
	require.NoError(t, db.Create(&models.Instructor{Name: "Dr. A", Email: "a@x.edu"}).Error)
	require.NoError(t, db.Create(&models.Admin{Name: "Root", Email: "root@x.edu"}).Error)

	cases := map[string]string{
		"sam@x.edu":  models.RoleStudent,
		"a@x.edu":    models.RoleInstructor,
		"root@x.edu": models.RoleAdmin,
	}
	for email, role := range cases {
		resp, err := svc.Login(context.Background(), dto.LoginRequest{Email: email})
		require.NoError(t, err)
		require.Equal(t, role, resp.Role)
		require.NotEmpty(t, resp.Token)
		require.Equal(t, landingRoutes[role], resp.Redirect)

		session, err := svc.Validate(context.Background(), resp.Token)
		require.NoError(t, err)
		require.Equal(t, resp.UserID, session.UserID)
		require.Equal(t, role, session.Role)
	}
}

func TestAuthLoginUnknownEmail(t *testing.T) {
	svc, _, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), dto.LoginRequest{Email: "ghost@x.edu"})
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.Login(context.Background(), dto.LoginRequest{Email: "not-an-email"})
	require.Error(t, err)
}

func TestAuthValidateRejectsRevokedSession(t *testing.T) {
	svc, db, _ := newAuthFixture(t)
	require.NoError(t, db.Create(&models.Student{Name: "Sam", Email: "sam@x.edu"}).Error)

	resp, err := svc.Login(context.Background(), dto.LoginRequest{Email: "sam@x.edu"})
	require.NoError(t, err)

	session, err := svc.Validate(context.Background(), resp.Token)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), session.ID))
	_, err = svc.Validate(context.Background(), resp.Token)
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestAuthValidateRejectsExpiredAndForgedTokens(t *testing.T) {
	svc, db, mini := newAuthFixture(t)
	require.NoError(t, db.Create(&models.Student{Name: "Sam", Email: "sam@x.edu"}).Error)

	resp, err := svc.Login(context.Background(), dto.LoginRequest{Email: "sam@x.edu"})
	require.NoError(t, err)

	_, err = svc.Validate(context.Background(), resp.Token+"x")
	require.ErrorIs(t, err, ErrInvalidSession)

	_, err = svc.Validate(context.Background(), "garbage")
	require.ErrorIs(t, err, ErrInvalidSession)

	mini.FastForward(2 * time.Hour)
	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.Validate(context.Background(), resp.Token)
	require.ErrorIs(t, err, ErrInvalidSession)
}
