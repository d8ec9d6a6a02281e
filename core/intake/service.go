package intake

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hagwon/core"
	"github.com/trezcool/hagwon/core/student"
	"github.com/trezcool/hagwon/core/user"
)

const (
	maxImageSize = 10 << 20 // 10 MiB

	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

var (
	// errors
	errImageRequired   = errors.New("an image is required")
	errImageTooLarge   = errors.New("image exceeds the 10 MiB limit")
	errUnsupportedType = errors.New("only JPEG and PNG images are supported")

	allowedImageTypes = map[string]bool{
		"image/jpeg": true,
		"image/png":  true,
	}
)

type (
	Repository interface {
		CreateApplication(ctx context.Context, app Application, exec ...core.DBExecutor) (Application, error)
		// QueryApplications returns the newest applications first.
		QueryApplications(ctx context.Context, limit int, exec ...core.DBExecutor) ([]Application, error)
	}

	ServiceInterface interface {
		Scan(ctx context.Context, image []byte, contentType string) (ScanResult, error)
		Approve(ctx context.Context, rev Review, reviewer user.User) (Application, student.Student, error)
		Reject(ctx context.Context, rev Review, reviewer user.User) (Application, error)
		History(ctx context.Context, limit int) ([]Application, error)
	}

	service struct {
		repo       Repository
		extractor  Extractor
		studentSvc student.ServiceInterface
	}
)

var _ ServiceInterface = (*service)(nil) // interface compliance check

func NewService(repo Repository, extractor Extractor, studentSvc student.ServiceInterface) *service {
	return &service{
		repo:       repo,
		extractor:  extractor,
		studentSvc: studentSvc,
	}
}

// Scan runs the vision model over an uploaded form and returns the
// pre-fill. Nothing is persisted: extraction output is never trusted
// before a human review.
func (svc *service) Scan(ctx context.Context, image []byte, contentType string) (ScanResult, error) {
	if len(image) == 0 {
		return ScanResult{}, core.NewValidationError(errImageRequired, core.FieldError{Field: "image", Error: errImageRequired.Error()})
	}
	if len(image) > maxImageSize {
		return ScanResult{}, core.NewValidationError(errImageTooLarge, core.FieldError{Field: "image", Error: errImageTooLarge.Error()})
	}
	if !allowedImageTypes[contentType] {
		return ScanResult{}, core.NewValidationError(errUnsupportedType, core.FieldError{Field: "image", Error: errUnsupportedType.Error()})
	}

	fields, rawText, err := svc.extractor.ExtractApplication(ctx, image, contentType)
	if err != nil {
		return ScanResult{}, errors.Wrap(err, "extracting application")
	}
	return ScanResult{Fields: fields, RawText: rawText}, nil
}

// Approve stores the reviewed application and registers the student,
// with any preferred times as availability.
func (svc *service) Approve(ctx context.Context, rev Review, reviewer user.User) (Application, student.Student, error) {
	now := time.Now().UTC()

	app, err := svc.repo.CreateApplication(ctx, svc.newApplication(rev, reviewer, StatusApproved, now))
	if err != nil {
		return Application{}, student.Student{}, errors.Wrap(err, "creating application")
	}

	notes := rev.SpecialNotes
	if rev.BlueNotes != "" {
		if notes != "" {
			notes += "\n\n"
		}
		notes += "[blue memo] " + rev.BlueNotes
	}
	std, err := svc.studentSvc.Create(ctx, student.NewStudent{
		Name:              rev.Name,
		Grade:             rev.Grade,
		ParentPhone:       rev.ParentPhone,
		IsExistingStudent: rev.IsExistingStudent,
		HasSibling:        rev.HasSibling,
		ReadingHabit:      rev.ReadingHabit,
		SpecialNotes:      notes,
	}, reviewer.ID)
	if err != nil {
		return Application{}, student.Student{}, errors.Wrap(err, "creating student")
	}

	if len(rev.PreferredTimes) > 0 {
		na := student.NewAvailability{Entries: rev.PreferredTimes}
		if _, err = svc.studentSvc.SetAvailability(ctx, std.ID, na); err != nil {
			return Application{}, student.Student{}, errors.Wrap(err, "setting availability")
		}
	}
	return app, std, nil
}

// Reject stores the application for the audit trail; no student is created.
func (svc *service) Reject(ctx context.Context, rev Review, reviewer user.User) (Application, error) {
	now := time.Now().UTC()
	app, err := svc.repo.CreateApplication(ctx, svc.newApplication(rev, reviewer, StatusRejected, now))
	return app, errors.Wrap(err, "creating application")
}

func (svc *service) History(ctx context.Context, limit int) ([]Application, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	} else if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return svc.repo.QueryApplications(ctx, limit)
}

func (svc *service) newApplication(rev Review, reviewer user.User, status string, now time.Time) Application {
	ref := "upload_" + now.Format("20060102_150405")
	if rev.ImageRef != "" {
		ref += "_" + rev.ImageRef
	}
	return Application{
		ImageRef:     ref,
		RawText:      rev.RawText,
		Fields:       rev.fields(),
		BlueNotes:    rev.BlueNotes,
		ReviewStatus: status,
		ReviewedBy:   null.StringFrom(reviewer.ID),
		ReviewedAt:   null.TimeFrom(now),
		CreatedAt:    now,
	}
}
