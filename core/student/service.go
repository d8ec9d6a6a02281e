package student

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hagwon/core"
)

var (
	// errors
	ErrNotFound = errors.New("student not found")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateStudent(ctx context.Context, std Student, exec ...core.DBExecutor) (Student, error)
		// QueryStudents applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Student.Name or Student.ParentPhone.
		QueryStudents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Student, error)
		GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		UpdateStudent(ctx context.Context, std Student, exec ...core.DBExecutor) (Student, error)
		DeleteStudentsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)

		ListAvailability(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]AvailabilityEntry, error)
		DeleteAvailability(ctx context.Context, studentID string, exec ...core.DBExecutor) error
		CreateAvailability(ctx context.Context, entries []AvailabilityEntry, exec ...core.DBExecutor) ([]AvailabilityEntry, error)

		CountStats(ctx context.Context, newSince time.Time, exec ...core.DBExecutor) (Stats, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, ns NewStudent, createdBy string) (Student, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		GetByID(ctx context.Context, id string) (Student, error)
		Update(ctx context.Context, id string, us UpdateStudent) (Student, error)
		Delete(ctx context.Context, ids ...string) error
		MarkPaid(ctx context.Context, id string, at time.Time) (Student, error)
		MarkUnpaid(ctx context.Context, id string) (Student, error)
		SetAvailability(ctx context.Context, studentID string, na NewAvailability) ([]AvailabilityEntry, error)
		ListAvailability(ctx context.Context, studentID string) ([]AvailabilityEntry, error)
		Stats(ctx context.Context) (Stats, error)
	}

	service struct {
		db   core.DB
		repo Repository
	}
)

var _ ServiceInterface = (*service)(nil) // interface compliance check

func NewService(db core.DB, repo Repository) *service {
	return &service{
		db:   db,
		repo: repo,
	}
}

func (svc *service) Create(ctx context.Context, ns NewStudent, createdBy string) (Student, error) {
	now := nowFunc().UTC()
	std := Student{
		Name:              ns.Name,
		Grade:             ns.Grade,
		ParentPhone:       ns.ParentPhone,
		PaymentStatus:     PaymentUnpaid,
		IsExistingStudent: ns.IsExistingStudent,
		HasSibling:        ns.HasSibling,
		ReadingHabit:      ns.ReadingHabit,
		SpecialNotes:      ns.SpecialNotes,
		CreatedBy:         null.NewString(createdBy, createdBy != ""),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	return svc.repo.CreateStudent(ctx, std)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	if filter != nil && filter.IsEmpty() {
		filter = nil
	}
	return svc.repo.QueryStudents(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	std, err := svc.GetByID(ctx, id)
	if err != nil {
		return Student{}, err
	}

	// UpdateStudent.Validate defaults Name, Grade & ParentPhone to the original's
	std.Name = us.Name
	std.Grade = us.Grade
	std.ParentPhone = us.ParentPhone
	if us.IsExistingStudent != nil {
		std.IsExistingStudent = *us.IsExistingStudent
	}
	if us.HasSibling != nil {
		std.HasSibling = *us.HasSibling
	}
	if us.ReadingHabit != nil {
		std.ReadingHabit = core.CleanString(*us.ReadingHabit)
	}
	if us.SpecialNotes != nil {
		std.SpecialNotes = core.CleanString(*us.SpecialNotes)
	}
	std.UpdatedAt = nowFunc().UTC()

	return svc.repo.UpdateStudent(ctx, std)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteStudentsByID(ctx, ids)
	return err
}

// MarkPaid records a payment; a zero `at` means now.
func (svc *service) MarkPaid(ctx context.Context, id string, at time.Time) (Student, error) {
	std, err := svc.GetByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if at.IsZero() {
		at = nowFunc()
	}
	std.PaymentStatus = PaymentPaid
	std.PaymentDate = null.TimeFrom(at.UTC())
	std.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateStudent(ctx, std)
}

func (svc *service) MarkUnpaid(ctx context.Context, id string) (Student, error) {
	std, err := svc.GetByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	std.PaymentStatus = PaymentUnpaid
	std.PaymentDate = null.Time{}
	std.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateStudent(ctx, std)
}

// SetAvailability replaces the student's whole availability set in one transaction.
func (svc *service) SetAvailability(ctx context.Context, studentID string, na NewAvailability) ([]AvailabilityEntry, error) {
	if _, err := svc.GetByID(ctx, studentID); err != nil {
		return nil, err
	}

	now := nowFunc().UTC()
	entries := make([]AvailabilityEntry, 0, len(na.Entries))
	for _, row := range na.Entries {
		entries = append(entries, AvailabilityEntry{
			StudentID: studentID,
			DayOfWeek: row.DayOfWeek,
			TimeSlot:  row.TimeSlot,
			Priority:  row.Priority,
			CreatedAt: now,
		})
	}

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "beginning transaction")
	}
	if err = svc.repo.DeleteAvailability(ctx, studentID, tx); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	entries, err = svc.repo.CreateAvailability(ctx, entries, tx)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing transaction")
	}
	return entries, nil
}

func (svc *service) ListAvailability(ctx context.Context, studentID string) ([]AvailabilityEntry, error) {
	if _, err := svc.GetByID(ctx, studentID); err != nil {
		return nil, err
	}
	return svc.repo.ListAvailability(ctx, studentID)
}

func (svc *service) Stats(ctx context.Context) (Stats, error) {
	newSince := nowFunc().UTC().AddDate(0, 0, -7)
	return svc.repo.CountStats(ctx, newSince)
}
