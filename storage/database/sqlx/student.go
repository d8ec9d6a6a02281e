package sqlxrepos

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hagwon/core"
	"github.com/trezcool/hagwon/core/student"
)

const (
	studentsTable       = "students"
	availableTimesTable = "available_times"
)

var (
	studentColumns = []string{
		"id", "name", "grade", "parent_phone", "payment_status", "payment_date",
		"is_existing_student", "has_sibling", "reading_habit", "special_notes",
		"created_by", "created_at", "updated_at",
	}
	availabilityColumns = []string{"id", "student_id", "day_of_week", "time_slot", "priority", "created_at"}

	availabilityColumnsList = strings.Join(availabilityColumns, ", ")
)

type studentRow struct {
	ID                string      `db:"id"`
	Name              string      `db:"name"`
	Grade             string      `db:"grade"`
	ParentPhone       null.String `db:"parent_phone"`
	PaymentStatus     string      `db:"payment_status"`
	PaymentDate       null.Time   `db:"payment_date"`
	IsExistingStudent bool        `db:"is_existing_student"`
	HasSibling        bool        `db:"has_sibling"`
	ReadingHabit      null.String `db:"reading_habit"`
	SpecialNotes      null.String `db:"special_notes"`
	CreatedBy         null.String `db:"created_by"`
	CreatedAt         time.Time   `db:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at"`
}

type availabilityRow struct {
	ID        int64     `db:"id"`
	StudentID string    `db:"student_id"`
	DayOfWeek string    `db:"day_of_week"`
	TimeSlot  string    `db:"time_slot"`
	Priority  int       `db:"priority"`
	CreatedAt time.Time `db:"created_at"`
}

type studentRepository struct {
	repository
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(exec core.DBExecutor) *studentRepository {
	return &studentRepository{repository{exec: exec}}
}

func (repo studentRepository) pack(std student.Student) studentRow {
	r := studentRow{
		ID:                std.ID,
		Name:              std.Name,
		Grade:             std.Grade,
		ParentPhone:       null.NewString(std.ParentPhone, std.ParentPhone != ""),
		PaymentStatus:     std.PaymentStatus,
		IsExistingStudent: std.IsExistingStudent,
		HasSibling:        std.HasSibling,
		ReadingHabit:      null.NewString(std.ReadingHabit, std.ReadingHabit != ""),
		SpecialNotes:      null.NewString(std.SpecialNotes, std.SpecialNotes != ""),
		CreatedBy:         std.CreatedBy,
		CreatedAt:         std.CreatedAt.UTC(),
		UpdatedAt:         std.UpdatedAt.UTC(),
	}
	if std.PaymentDate.Valid {
		r.PaymentDate = null.TimeFrom(std.PaymentDate.Time.UTC())
	}
	return r
}

func (repo studentRepository) unpack(r studentRow) student.Student {
	return student.Student{
		ID:                r.ID,
		Name:              r.Name,
		Grade:             r.Grade,
		ParentPhone:       r.ParentPhone.String,
		PaymentStatus:     r.PaymentStatus,
		PaymentDate:       r.PaymentDate,
		IsExistingStudent: r.IsExistingStudent,
		HasSibling:        r.HasSibling,
		ReadingHabit:      r.ReadingHabit.String,
		SpecialNotes:      r.SpecialNotes.String,
		CreatedBy:         r.CreatedBy,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func (repo studentRepository) selectStudents(ctx context.Context, qry sq.SelectBuilder, exec []core.DBExecutor) ([]studentRow, error) {
	q, args, err := qry.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	rows, err := repo.getExec(exec).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var srows []studentRow
	if err = sqlx.StructScan(rows, &srows); err != nil {
		return nil, err
	}
	return srows, nil
}

func (repo studentRepository) CreateStudent(ctx context.Context, std student.Student, exec ...core.DBExecutor) (student.Student, error) {
	std.ID = uuid.New().String()
	r := repo.pack(std)

	q, args, err := psql.Insert(studentsTable).
		Columns(studentColumns...).
		Values(r.ID, r.Name, r.Grade, r.ParentPhone, r.PaymentStatus, r.PaymentDate,
			r.IsExistingStudent, r.HasSibling, r.ReadingHabit, r.SpecialNotes,
			r.CreatedBy, r.CreatedAt, r.UpdatedAt).
		ToSql()
	if err != nil {
		return student.Student{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.getExec(exec).ExecContext(ctx, q, args...); err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return repo.unpack(r), nil
}

func (repo studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]student.Student, error) {
	qry := psql.Select(studentColumns...).From(studentsTable)

	if filter != nil {
		// students with Name or ParentPhone matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			qry = qry.Where(sq.Or{sq.ILike{"name": val}, sq.ILike{"parent_phone": val}})
		}
		if filter.Grade != "" {
			qry = qry.Where(sq.Eq{"grade": filter.Grade})
		}
		if filter.PaymentStatus != "" {
			qry = qry.Where(sq.Eq{"payment_status": filter.PaymentStatus})
		}
		if filter.IsExistingStudent != nil {
			qry = qry.Where(sq.Eq{"is_existing_student": *filter.IsExistingStudent})
		}
		if filter.HasSibling != nil {
			qry = qry.Where(sq.Eq{"has_sibling": *filter.HasSibling})
		}
		if !filter.CreatedFrom.IsZero() {
			qry = qry.Where(sq.GtOrEq{"created_at": filter.CreatedFrom.UTC()})
		}
		if !filter.CreatedTo.IsZero() {
			qry = qry.Where(sq.LtOrEq{"created_at": filter.CreatedTo.UTC()})
		}
	}

	if ordering != nil {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		qry = qry.OrderBy(strings.Join(orderList, ", "))
	}

	srows, err := repo.selectStudents(ctx, qry, exec)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]student.Student, 0, len(srows))
	for _, r := range srows {
		students = append(students, repo.unpack(r))
	}
	return students, nil
}

func (repo studentRepository) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (student.Student, error) {
	if _, err := uuid.Parse(id); err != nil {
		return student.Student{}, student.ErrNotFound
	}

	srows, err := repo.selectStudents(ctx, psql.Select(studentColumns...).From(studentsTable).Where(sq.Eq{"id": id}), exec)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "finding student")
	}
	if len(srows) == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return repo.unpack(srows[0]), nil
}

func (repo studentRepository) UpdateStudent(ctx context.Context, std student.Student, exec ...core.DBExecutor) (student.Student, error) {
	r := repo.pack(std)

	q, args, err := psql.Update(studentsTable).
		SetMap(map[string]interface{}{
			"name":                r.Name,
			"grade":               r.Grade,
			"parent_phone":        r.ParentPhone,
			"payment_status":      r.PaymentStatus,
			"payment_date":        r.PaymentDate,
			"is_existing_student": r.IsExistingStudent,
			"has_sibling":         r.HasSibling,
			"reading_habit":       r.ReadingHabit,
			"special_notes":       r.SpecialNotes,
			"updated_at":          r.UpdatedAt,
		}).
		Where(sq.Eq{"id": r.ID}).
		ToSql()
	if err != nil {
		return student.Student{}, errors.Wrap(err, "building query")
	}

	res, err := repo.getExec(exec).ExecContext(ctx, q, args...)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return repo.unpack(r), nil
}

func (repo studentRepository) DeleteStudentsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	q, args, err := psql.Delete(studentsTable).Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := repo.getExec(exec).ExecContext(ctx, q, args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting students")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting students")
	}
	return int(cnt), nil
}

func (repo studentRepository) ListAvailability(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]student.AvailabilityEntry, error) {
	q, args, err := psql.Select(availabilityColumns...).
		From(availableTimesTable).
		Where(sq.Eq{"student_id": studentID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	rows, err := repo.getExec(exec).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying availability")
	}
	defer func() { _ = rows.Close() }()

	var arows []availabilityRow
	if err = sqlx.StructScan(rows, &arows); err != nil {
		return nil, errors.Wrap(err, "querying availability")
	}
	entries := make([]student.AvailabilityEntry, 0, len(arows))
	for _, r := range arows {
		entries = append(entries, student.AvailabilityEntry(r))
	}
	return entries, nil
}

func (repo studentRepository) DeleteAvailability(ctx context.Context, studentID string, exec ...core.DBExecutor) error {
	q, args, err := psql.Delete(availableTimesTable).Where(sq.Eq{"student_id": studentID}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if _, err = repo.getExec(exec).ExecContext(ctx, q, args...); err != nil {
		return errors.Wrap(err, "deleting availability")
	}
	return nil
}

func (repo studentRepository) CreateAvailability(ctx context.Context, entries []student.AvailabilityEntry, exec ...core.DBExecutor) ([]student.AvailabilityEntry, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	qry := psql.Insert(availableTimesTable).
		Columns("student_id", "day_of_week", "time_slot", "priority", "created_at")
	for _, e := range entries {
		qry = qry.Values(e.StudentID, e.DayOfWeek, e.TimeSlot, e.Priority, e.CreatedAt.UTC())
	}
	q, args, err := qry.Suffix("RETURNING " + availabilityColumnsList).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	rows, err := repo.getExec(exec).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "inserting availability")
	}
	defer func() { _ = rows.Close() }()

	var arows []availabilityRow
	if err = sqlx.StructScan(rows, &arows); err != nil {
		return nil, errors.Wrap(err, "inserting availability")
	}
	created := make([]student.AvailabilityEntry, 0, len(arows))
	for _, r := range arows {
		created = append(created, student.AvailabilityEntry(r))
	}
	return created, nil
}

func (repo studentRepository) CountStats(ctx context.Context, newSince time.Time, exec ...core.DBExecutor) (student.Stats, error) {
	var stats student.Stats
	exe := repo.getExec(exec)

	q := `SELECT COUNT(*),
       COUNT(*) FILTER (WHERE payment_status = $1),
       COUNT(*) FILTER (WHERE is_existing_student),
       COUNT(*) FILTER (WHERE created_at >= $2)
FROM students`
	err := exe.QueryRowContext(ctx, q, student.PaymentPaid, newSince.UTC()).
		Scan(&stats.Total, &stats.Paid, &stats.Existing, &stats.NewLast7Days)
	if err != nil {
		return student.Stats{}, errors.Wrap(err, "counting students")
	}
	stats.Unpaid = stats.Total - stats.Paid

	rows, err := exe.QueryContext(ctx, "SELECT grade, COUNT(*) FROM students GROUP BY grade")
	if err != nil {
		return student.Stats{}, errors.Wrap(err, "counting students per grade")
	}
	defer func() { _ = rows.Close() }()

	stats.PerGrade = make(map[string]int)
	for rows.Next() {
		var grade string
		var count int
		if err = rows.Scan(&grade, &count); err != nil {
			return student.Stats{}, errors.Wrap(err, "counting students per grade")
		}
		stats.PerGrade[grade] = count
	}
	if err = rows.Err(); err != nil {
		return student.Stats{}, errors.Wrap(err, "counting students per grade")
	}
	return stats, nil
}
