package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hagwon/core"
	"github.com/trezcool/hagwon/core/schedule"
)

type entryRow struct {
	DayOfWeek   string `db:"day_of_week"`
	TimeSlot    string `db:"time_slot"`
	StudentName string `db:"student_name"`
}

type candidateRow struct {
	Name              string    `db:"name"`
	Grade             string    `db:"grade"`
	PaymentStatus     string    `db:"payment_status"`
	PaymentDate       null.Time `db:"payment_date"`
	IsExistingStudent bool      `db:"is_existing_student"`
	HasSibling        bool      `db:"has_sibling"`
	Priority          int       `db:"priority"`
}

type scheduleRepository struct {
	repository
}

var _ schedule.Repository = (*scheduleRepository)(nil) // interface compliance check

func NewScheduleRepository(exec core.DBExecutor) *scheduleRepository {
	return &scheduleRepository{repository{exec: exec}}
}

func (repo scheduleRepository) QuerySlotEntries(ctx context.Context, day string, exec ...core.DBExecutor) ([]schedule.Entry, error) {
	qry := psql.Select("av.day_of_week", "av.time_slot", "s.name AS student_name").
		From(availableTimesTable + " av").
		Join(studentsTable + " s ON s.id = av.student_id").
		OrderBy("av.created_at", "av.id")
	if day != "" {
		qry = qry.Where(sq.Eq{"av.day_of_week": day})
	}

	q, args, err := qry.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	rows, err := repo.getExec(exec).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying slot entries")
	}
	defer func() { _ = rows.Close() }()

	var erows []entryRow
	if err = sqlx.StructScan(rows, &erows); err != nil {
		return nil, errors.Wrap(err, "querying slot entries")
	}
	entries := make([]schedule.Entry, 0, len(erows))
	for _, r := range erows {
		entries = append(entries, schedule.Entry(r))
	}
	return entries, nil
}

func (repo scheduleRepository) QuerySlotCandidates(ctx context.Context, day, slot string, exec ...core.DBExecutor) ([]schedule.Candidate, error) {
	q, args, err := psql.Select(
		"s.name", "s.grade", "s.payment_status", "s.payment_date",
		"s.is_existing_student", "s.has_sibling", "av.priority").
		From(availableTimesTable + " av").
		Join(studentsTable + " s ON s.id = av.student_id").
		Where(sq.Eq{"av.day_of_week": day, "av.time_slot": slot}).
		OrderBy("av.created_at", "av.id"). // registration order
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	rows, err := repo.getExec(exec).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying slot candidates")
	}
	defer func() { _ = rows.Close() }()

	var crows []candidateRow
	if err = sqlx.StructScan(rows, &crows); err != nil {
		return nil, errors.Wrap(err, "querying slot candidates")
	}

	cands := make([]schedule.Candidate, 0, len(crows))
	for _, r := range crows {
		cands = append(cands, schedule.Candidate{
			Name:              r.Name,
			Grade:             r.Grade,
			PaymentStatus:     r.PaymentStatus,
			PaymentDate:       null.NewString(r.PaymentDate.Time.UTC().Format(time.RFC3339), r.PaymentDate.Valid),
			IsExistingStudent: r.IsExistingStudent,
			HasSibling:        r.HasSibling,
			TimeSlotPriority:  r.Priority,
		})
	}
	return cands, nil
}
