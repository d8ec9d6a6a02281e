package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hagwon/core"
	"github.com/trezcool/hagwon/core/student"
	"github.com/trezcool/hagwon/core/user"
)

var errStdNotFoundInCtx = errors.New("student object not found in echo.Context")

type studentApi struct {
	svc      student.ServiceInterface
	userSvc  user.ServiceInterface
	validate *validator.Validate
}

func registerStudentAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc student.ServiceInterface,
	userSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := studentApi{
		svc:      svc,
		userSvc:  userSvc,
		validate: validate,
	}

	sg := g.Group("/students", jwt)

	// any authed staff can read
	sg.GET("", api.query)
	sg.GET("/stats", api.stats)
	sg.GET("/grades", api.queryGrades)

	// writes need the modify flag
	sg.POST("", api.create, canEditMiddleware())
	sg.DELETE("", api.destroyMultiple, adminMiddleware())

	// detail endpoints
	dg := sg.Group("/:id", ctxStudentMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, canEditMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.GET("/availability", api.listAvailability)
	dg.PUT("/availability", api.setAvailability, canEditMiddleware())
	dg.POST("/payment", api.markPaid, canEditMiddleware())
	dg.DELETE("/payment", api.markUnpaid, canEditMiddleware())
}

// Handlers

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	std, err := api.svc.Create(ctx.Request().Context(), data, ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}

	return ctx.JSON(http.StatusCreated, std)
}

func (api *studentApi) query(ctx echo.Context) error {
	filter := new(student.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []student.Student{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "counting students")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *studentApi) queryGrades(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, student.Grades)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	std, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStdNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *studentApi) update(ctx echo.Context) error {
	std, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStdNotFoundInCtx, "retrieving object from context")
	}

	var data student.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err := data.Validate(std, api.validate); err != nil {
		return err
	}

	std, err := api.svc.Update(ctx.Request().Context(), std.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}

	return ctx.JSON(http.StatusOK, std)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	std, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStdNotFoundInCtx, "retrieving object from context")
	}

	if err := api.svc.Delete(ctx.Request().Context(), std.ID); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting students")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) markPaid(ctx echo.Context) error {
	std, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStdNotFoundInCtx, "retrieving object from context")
	}

	var data PaymentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PaymentRequest")
	}
	at, err := data.PaidAtTime()
	if err != nil {
		return err
	}

	std, err = api.svc.MarkPaid(ctx.Request().Context(), std.ID, at)
	if err != nil {
		return errors.Wrap(err, "marking student paid")
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *studentApi) markUnpaid(ctx echo.Context) error {
	std, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStdNotFoundInCtx, "retrieving object from context")
	}

	std, err := api.svc.MarkUnpaid(ctx.Request().Context(), std.ID)
	if err != nil {
		return errors.Wrap(err, "marking student unpaid")
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *studentApi) listAvailability(ctx echo.Context) error {
	std, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStdNotFoundInCtx, "retrieving object from context")
	}

	entries, err := api.svc.ListAvailability(ctx.Request().Context(), std.ID)
	if err != nil {
		return errors.Wrap(err, "listing availability")
	}
	if entries == nil {
		entries = []student.AvailabilityEntry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *studentApi) setAvailability(ctx echo.Context) error {
	std, ok := ctx.Get("object").(student.Student)
	if !ok {
		return errors.Wrap(errStdNotFoundInCtx, "retrieving object from context")
	}

	var data student.NewAvailability
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAvailability")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	entries, err := api.svc.SetAvailability(ctx.Request().Context(), std.ID, data)
	if err != nil {
		return errors.Wrap(err, "setting availability")
	}
	if entries == nil {
		entries = []student.AvailabilityEntry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func ctxStudentMiddleware(svc student.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			std, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == student.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding student by ID")
			}
			ctx.Set("object", std)
			return next(ctx)
		}
	}
}

type PaymentRequest struct {
	PaidAt string `json:"paid_at"` // RFC3339; empty means now
}

// PaidAtTime parses PaidAt; the zero time stands for "now".
func (pr PaymentRequest) PaidAtTime() (time.Time, error) {
	if pr.PaidAt == "" {
		return time.Time{}, nil
	}
	at, err := time.Parse(time.RFC3339, pr.PaidAt)
	if err != nil {
		return time.Time{}, core.NewValidationError(nil, core.FieldError{Field: "paid_at", Error: "must be a valid RFC 3339 datetime"})
	}
	return at, nil
}
