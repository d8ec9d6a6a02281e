package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hagwon/core"
	"github.com/trezcool/hagwon/core/intake"
)

const applicationsTable = "ocr_applications"

var applicationColumns = []string{
	"id", "image_ref", "raw_text", "fields", "blue_notes",
	"review_status", "reviewed_by", "reviewed_at", "created_at",
}

type applicationRow struct {
	ID           string      `db:"id"`
	ImageRef     null.String `db:"image_ref"`
	RawText      null.String `db:"raw_text"`
	Fields       null.JSON   `db:"fields"`
	BlueNotes    null.String `db:"blue_notes"`
	ReviewStatus string      `db:"review_status"`
	ReviewedBy   null.String `db:"reviewed_by"`
	ReviewedAt   null.Time   `db:"reviewed_at"`
	CreatedAt    time.Time   `db:"created_at"`
}

type applicationRepository struct {
	repository
}

var _ intake.Repository = (*applicationRepository)(nil) // interface compliance check

func NewApplicationRepository(exec core.DBExecutor) *applicationRepository {
	return &applicationRepository{repository{exec: exec}}
}

func (repo applicationRepository) pack(app intake.Application) (applicationRow, error) {
	fields, err := json.Marshal(app.Fields)
	if err != nil {
		return applicationRow{}, errors.Wrap(err, "marshalling extracted fields")
	}
	r := applicationRow{
		ID:           app.ID,
		ImageRef:     null.NewString(app.ImageRef, app.ImageRef != ""),
		RawText:      null.NewString(app.RawText, app.RawText != ""),
		Fields:       null.JSONFrom(fields),
		BlueNotes:    null.NewString(app.BlueNotes, app.BlueNotes != ""),
		ReviewStatus: app.ReviewStatus,
		ReviewedBy:   app.ReviewedBy,
		CreatedAt:    app.CreatedAt.UTC(),
	}
	if app.ReviewedAt.Valid {
		r.ReviewedAt = null.TimeFrom(app.ReviewedAt.Time.UTC())
	}
	return r, nil
}

func (repo applicationRepository) unpack(r applicationRow) (intake.Application, error) {
	app := intake.Application{
		ID:           r.ID,
		ImageRef:     r.ImageRef.String,
		RawText:      r.RawText.String,
		BlueNotes:    r.BlueNotes.String,
		ReviewStatus: r.ReviewStatus,
		ReviewedBy:   r.ReviewedBy,
		ReviewedAt:   r.ReviewedAt,
		CreatedAt:    r.CreatedAt,
	}
	if r.Fields.Valid {
		if err := json.Unmarshal(r.Fields.JSON, &app.Fields); err != nil {
			return intake.Application{}, errors.Wrap(err, "unmarshalling extracted fields")
		}
	}
	return app, nil
}

func (repo applicationRepository) CreateApplication(ctx context.Context, app intake.Application, exec ...core.DBExecutor) (intake.Application, error) {
	app.ID = uuid.New().String()
	r, err := repo.pack(app)
	if err != nil {
		return intake.Application{}, err
	}

	q, args, err := psql.Insert(applicationsTable).
		Columns(applicationColumns...).
		Values(r.ID, r.ImageRef, r.RawText, r.Fields, r.BlueNotes,
			r.ReviewStatus, r.ReviewedBy, r.ReviewedAt, r.CreatedAt).
		ToSql()
	if err != nil {
		return intake.Application{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.getExec(exec).ExecContext(ctx, q, args...); err != nil {
		return intake.Application{}, errors.Wrap(err, "inserting application")
	}
	return app, nil
}

func (repo applicationRepository) QueryApplications(ctx context.Context, limit int, exec ...core.DBExecutor) ([]intake.Application, error) {
	q, args, err := psql.Select(applicationColumns...).
		From(applicationsTable).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	rows, err := repo.getExec(exec).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying applications")
	}
	defer func() { _ = rows.Close() }()

	var arows []applicationRow
	if err = sqlx.StructScan(rows, &arows); err != nil {
		return nil, errors.Wrap(err, "querying applications")
	}

	apps := make([]intake.Application, 0, len(arows))
	for _, r := range arows {
		app, err := repo.unpack(r)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, nil
}
