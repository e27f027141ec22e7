package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core/importer"
	"github.com/trezcool/rollcall/core/roster"
)

type importApi struct {
	svc *importer.Service
}

func registerImportAPI(g *echo.Group, svc *importer.Service) {
	api := importApi{svc: svc}

	ig := g.Group("/imports")
	ig.GET("/formats", api.formats)
	ig.POST("/roster", api.importRoster)
	ig.POST("/attendance/:dayID", api.importAttendance)
	ig.POST("/url", api.importURL)
}

// Handlers

func (api *importApi) formats(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, FormatsResponse{Extensions: importer.SupportedExtensions()})
}

func (api *importApi) importRoster(ctx echo.Context) error {
	role, err := bindRole(ctx, "")
	if err != nil {
		return err
	}
	filename, data, err := bindFile(ctx)
	if err != nil {
		return err
	}

	res, err := api.svc.ImportFile(ctx.Request().Context(), filename, data, importer.Target{Role: role})
	if err != nil {
		return errors.Wrap(err, "importing roster")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *importApi) importAttendance(ctx echo.Context) error {
	dayID, err := bindDayID(ctx)
	if err != nil {
		return err
	}
	role, err := bindRole(ctx, roster.RoleCadet)
	if err != nil {
		return err
	}
	filename, data, err := bindFile(ctx)
	if err != nil {
		return err
	}

	res, err := api.svc.ImportFile(ctx.Request().Context(), filename, data, importer.Target{Role: role, TrainingDayID: dayID})
	if err != nil {
		return errors.Wrap(err, "importing attendance")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *importApi) importURL(ctx echo.Context) error {
	var data URLImportRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to URLImportRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	res, err := api.svc.ImportURL(ctx.Request().Context(), data.URL, data.Target())
	if err != nil {
		return errors.Wrap(err, "importing from link")
	}
	return ctx.JSON(http.StatusOK, res)
}
