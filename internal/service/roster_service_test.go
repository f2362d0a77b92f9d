package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/errlog"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/repository"
)

func newRosterFixture(t *testing.T) (RosterService, *gorm.DB) {
	t.Helper()
	db := setupServiceDB(t)
	return NewRosterService(repository.NewRosterRepository(db), errlog.Nop(), zerolog.Nop()), db
}

func countEnrollments(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Table("class_students").Count(&count).Error)
	return count
}

func TestRosterImportClassScenario(t *testing.T) {
	svc, db := newRosterFixture(t)
	require.NoError(t, db.Create(&models.Student{Name: "S1", Email: "s1@x.edu"}).Error)

	doc := "type,name,email,year,semester,instructor_email,student_emails\n" +
		"instructor,Dr.A,a@x.edu,,,,\n" +
		"class,EC530,,2024,FALL,a@x.edu,\"s1@x.edu,s2@x.edu\"\n"

	result, err := svc.Import(context.Background(), []byte(doc))
	require.NoError(t, err)
	require.Equal(t, 1, result.InstructorsInserted)
	require.Equal(t, 1, result.ClassesInserted)
	require.Equal(t, 0, result.StudentsInserted)
	require.Equal(t, 1, result.EnrollmentsAdded)

	var class models.Class
	require.NoError(t, db.Preload("Students").Where("name = ?", "EC530").First(&class).Error)
	require.Equal(t, models.SemesterFall, class.Semester)
	require.Equal(t, 2024, class.Year)
	require.Len(t, class.Students, 1)
	require.Equal(t, "s1@x.edu", class.Students[0].Email)
}

func TestRosterImportIsIdempotent(t *testing.T) {
	svc, db := newRosterFixture(t)

	doc := "type,name,email,year,semester,instructor_email,student_emails\n" +
		"student,Sam,s1@x.edu,,,,\n" +
		"Student , Kim ,s2@x.edu,,,,\n" +
		"instructor,Dr.A,a@x.edu,,,,\n" +
		"class,EC530,,2024,fall,a@x.edu,\"s1@x.edu, s2@x.edu\"\n"

	first, err := svc.Import(context.Background(), []byte(doc))
	require.NoError(t, err)
	require.Equal(t, 2, first.StudentsInserted)
	require.Equal(t, 1, first.InstructorsInserted)
	require.Equal(t, 1, first.ClassesInserted)
	require.Equal(t, 2, first.EnrollmentsAdded)

	second, err := svc.Import(context.Background(), []byte(doc))
	require.NoError(t, err)
	require.Zero(t, second.StudentsInserted)
	require.Zero(t, second.InstructorsInserted)
	require.Zero(t, second.ClassesInserted)
	require.Zero(t, second.EnrollmentsAdded)
	require.Equal(t, int64(2), countEnrollments(t, db))

	var student models.Student
	require.NoError(t, db.Where("email = ?", "s2@x.edu").First(&student).Error)
	require.Equal(t, "Kim", student.Name)
}

func TestRosterImportSkipsClassWithUnknownInstructor(t *testing.T) {
	svc, db := newRosterFixture(t)
	require.NoError(t, db.Create(&models.Student{Name: "S1", Email: "s1@x.edu"}).Error)

	doc := "type,name,email,year,semester,instructor_email,student_emails\n" +
		"class,EC530,,2024,FALL,ghost@x.edu,s1@x.edu\n"

	result, err := svc.Import(context.Background(), []byte(doc))
	require.NoError(t, err)
	require.Zero(t, result.ClassesInserted)
	require.Zero(t, result.EnrollmentsAdded)
	require.Equal(t, 1, result.RowsSkipped)

	var classes int64
	require.NoError(t, db.Model(&models.Class{}).Count(&classes).Error)
	require.Zero(t, classes)
	require.Zero(t, countEnrollments(t, db))
}

func TestRosterImportAddsStudentsToExistingClass(t *testing.T) {
	svc, db := newRosterFixture(t)

	base := "type,name,email,year,semester,instructor_email,student_emails\n" +
		"instructor,Dr.A,a@x.edu,,,,\n" +
		"student,Sam,s1@x.edu,,,,\n" +
		"class,EC530,,2024,FALL,a@x.edu,s1@x.edu\n"
	_, err := svc.Import(context.Background(), []byte(base))
	require.NoError(t, err)

	next := "type,name,email,year,semester,instructor_email,student_emails\n" +
		"student,Kim,s2@x.edu,,,,\n" +
		"class,EC530,,2024,FALL,a@x.edu,\"s1@x.edu,s2@x.edu\"\n"
	result, err := svc.Import(context.Background(), []byte(next))
	require.NoError(t, err)
	require.Zero(t, result.ClassesInserted)
	require.Equal(t, 1, result.StudentsInserted)
	require.Equal(t, 1, result.EnrollmentsAdded)
	require.Equal(t, int64(2), countEnrollments(t, db))
}

func TestRosterImportExistingClassIgnoresYearAndSemester(t *testing.T) {
	svc, db := newRosterFixture(t)

	base := "type,name,email,year,semester,instructor_email,student_emails\n" +
		"instructor,Dr.A,a@x.edu,,,,\n" +
		"student,Sam,s1@x.edu,,,,\n" +
		"class,EC530,,2024,FALL,a@x.edu,\n"
	_, err := svc.Import(context.Background(), []byte(base))
	require.NoError(t, err)

	next := "type,name,email,year,semester,instructor_email,student_emails\n" +
		"class,EC530,,twenty,SUMMER,a@x.edu,s1@x.edu\n"
	result, err := svc.Import(context.Background(), []byte(next))
	require.NoError(t, err)
	require.Zero(t, result.ClassesInserted)
	require.Zero(t, result.RowsSkipped)
	require.Equal(t, 1, result.EnrollmentsAdded)
	require.Equal(t, int64(1), countEnrollments(t, db))

	var class models.Class
	require.NoError(t, db.Where("name = ?", "EC530").First(&class).Error)
	require.Equal(t, 2024, class.Year)
	require.Equal(t, models.SemesterFall, class.Semester)
}

func TestRosterImportSkipsMalformedRows(t *testing.T) {
	svc, _ := newRosterFixture(t)

	doc := "type,name,email,year,semester,instructor_email,student_emails\n" +
		"student,,nobody@x.edu,,,,\n" +
		"instructor,Dr.B,,,,,\n" +
		"teacher,Dr.C,c@x.edu,,,,\n" +
		"instructor,Dr.A,a@x.edu,,,,\n" +
		"class,EC530,,twenty,FALL,a@x.edu,\n" +
		"class,EC531,,2024,SUMMER,a@x.edu,\n" +
		"class,,,2024,FALL,a@x.edu,\n"

	result, err := svc.Import(context.Background(), []byte(doc))
	require.NoError(t, err)
	require.Zero(t, result.StudentsInserted)
	require.Equal(t, 1, result.InstructorsInserted)
	require.Zero(t, result.ClassesInserted)
	require.Equal(t, 6, result.RowsSkipped)
}

func TestRosterImportRequiresTypeColumn(t *testing.T) {
	svc, db := newRosterFixture(t)

	_, err := svc.Import(context.Background(), []byte("name,email\nSam,s1@x.edu\n"))
	require.ErrorIs(t, err, ErrRosterMissingType)

	_, err = svc.Import(context.Background(), nil)
	require.ErrorIs(t, err, ErrRosterMissingType)

	var students int64
	require.NoError(t, db.Model(&models.Student{}).Count(&students).Error)
	require.Zero(t, students)
}

func TestRosterImportRejectsBrokenCSV(t *testing.T) {
	svc, db := newRosterFixture(t)

	doc := "type,name,email\nstudent,Sam,s1@x.edu\nstudent,\"Kim,s2@x.edu\n"
	_, err := svc.Import(context.Background(), []byte(doc))
	require.ErrorIs(t, err, ErrRosterMalformed)

	var students int64
	require.NoError(t, db.Model(&models.Student{}).Count(&students).Error)
	require.Zero(t, students)
}
