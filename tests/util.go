package testutil

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hagwon/core"
	"github.com/trezcool/hagwon/core/student"
	"github.com/trezcool/hagwon/core/user"
	logsvc "github.com/trezcool/hagwon/services/logger"
	dummydb "github.com/trezcool/hagwon/storage/database/dummy"
)

var (
	// Logger is a disabled logger for tests. Set by Conf.
	Logger core.Logger

	confOnce sync.Once
)

// Conf loads the shared test configuration on first use.
func Conf() *core.Config {
	confOnce.Do(func() {
		conf := core.NewConfig()
		conf.TestMode = true
		conf.Debug = false // keep error responses structured

		Logger = logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
		Logger.Enable(false)

		core.ParseEmailTemplates(Logger)
		user.LoadCommonPasswords(Logger)
	})
	return core.Conf
}

// PrepareDB hands out a fresh in-memory DB.
func PrepareDB(t *testing.T) *dummydb.DB {
	Conf()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	role string,
	canModify bool,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		CanModify: canModify,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func CreateStudent(
	t *testing.T,
	repo student.Repository,
	name, grade, phone string,
	existing, sibling bool,
	createdAt ...time.Time,
) student.Student {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	std := student.Student{
		Name:              name,
		Grade:             grade,
		ParentPhone:       phone,
		PaymentStatus:     student.PaymentUnpaid,
		IsExistingStudent: existing,
		HasSibling:        sibling,
		CreatedAt:         tstamp,
		UpdatedAt:         tstamp,
	}
	std, err := repo.CreateStudent(context.Background(), std)
	if err != nil {
		t.Fatalf("createStudent() failed: %v", err)
	}
	return std
}

func MarkStudentPaid(t *testing.T, repo student.Repository, std student.Student, at time.Time) student.Student {
	std.PaymentStatus = student.PaymentPaid
	std.PaymentDate = null.TimeFrom(at.UTC())
	std, err := repo.UpdateStudent(context.Background(), std)
	if err != nil {
		t.Fatalf("markStudentPaid() failed: %v", err)
	}
	return std
}

func CreateAvailability(
	t *testing.T,
	repo student.Repository,
	std student.Student,
	day, slot string,
	priority int,
) student.AvailabilityEntry {
	entries, err := repo.CreateAvailability(context.Background(), []student.AvailabilityEntry{{
		StudentID: std.ID,
		DayOfWeek: day,
		TimeSlot:  slot,
		Priority:  priority,
		CreatedAt: time.Now().UTC(),
	}})
	if err != nil {
		t.Fatalf("createAvailability() failed: %v", err)
	}
	return entries[0]
}
