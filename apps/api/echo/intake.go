package echoapi

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hagwon/core/intake"
	"github.com/trezcool/hagwon/core/student"
	"github.com/trezcool/hagwon/core/user"
)

type intakeApi struct {
	svc      intake.ServiceInterface
	userSvc  user.ServiceInterface
	validate *validator.Validate
}

func registerIntakeAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc intake.ServiceInterface,
	userSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := intakeApi{
		svc:      svc,
		userSvc:  userSvc,
		validate: validate,
	}

	ig := g.Group("/intake", jwt)
	ig.GET("/applications", api.queryApplications)
	ig.POST("/scan", api.scan, canEditMiddleware())
	ig.POST("/review", api.review, canEditMiddleware())
}

// Handlers

func (api *intakeApi) scan(ctx echo.Context) error {
	fileHdr, err := ctx.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "image file is required")
	}

	file, err := fileHdr.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded image")
	}
	defer func() { _ = file.Close() }()

	image, err := io.ReadAll(file)
	if err != nil {
		return errors.Wrap(err, "reading uploaded image")
	}

	res, err := api.svc.Scan(ctx.Request().Context(), image, fileHdr.Header.Get("Content-Type"))
	if err != nil {
		return errors.Wrap(err, "scanning application form")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *intakeApi) review(ctx echo.Context) error {
	var data intake.Review
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Review")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	reqCtx := ctx.Request().Context()

	if !data.Approve {
		app, err := api.svc.Reject(reqCtx, data, ctxUsr)
		if err != nil {
			return errors.Wrap(err, "rejecting application")
		}
		return ctx.JSON(http.StatusOK, ReviewResponse{Application: app})
	}

	app, std, err := api.svc.Approve(reqCtx, data, ctxUsr)
	if err != nil {
		return errors.Wrap(err, "approving application")
	}
	return ctx.JSON(http.StatusCreated, ReviewResponse{Application: app, Student: &std})
}

func (api *intakeApi) queryApplications(ctx echo.Context) error {
	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))

	apps, err := api.svc.History(ctx.Request().Context(), limit)
	if err != nil {
		return errors.Wrap(err, "querying applications")
	}
	if apps == nil {
		apps = []intake.Application{}
	}
	return ctx.JSON(http.StatusOK, apps)
}

type ReviewResponse struct {
	Application intake.Application `json:"application"`
	Student     *student.Student   `json:"student,omitempty"`
}
