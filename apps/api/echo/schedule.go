package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hagwon/core/schedule"
)

type scheduleApi struct {
	svc schedule.ServiceInterface
}

func registerScheduleAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc schedule.ServiceInterface) {
	api := scheduleApi{svc: svc}

	sg := g.Group("/schedule", jwt)
	sg.GET("/slots", api.slots)
	sg.GET("/ranking", api.ranking)
}

// Handlers

func (api *scheduleApi) slots(ctx echo.Context) error {
	summaries, err := api.svc.SlotBoard(ctx.Request().Context(), ctx.QueryParam("day"))
	if err != nil {
		return errors.Wrap(err, "aggregating slots")
	}
	if summaries == nil {
		summaries = []schedule.SlotSummary{}
	}
	return ctx.JSON(http.StatusOK, summaries)
}

func (api *scheduleApi) ranking(ctx echo.Context) error {
	ranked, err := api.svc.SlotRanking(ctx.Request().Context(), ctx.QueryParam("day"), ctx.QueryParam("slot"))
	if err != nil {
		return errors.Wrap(err, "ranking slot candidates")
	}
	if ranked == nil {
		ranked = []schedule.RankedCandidate{}
	}
	return ctx.JSON(http.StatusOK, ranked)
}
