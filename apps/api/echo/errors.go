package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/roster"
)

// newAppHTTPErrorHandler maps import errors to JSON responses.
// Field errors are rendered as {"field": "message"}, anything else as {"error": "message"}.
// signalShutdown is called whenever a core shutdown error reaches the handler.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, message := errorResponse(err)

		if code >= http.StatusInternalServerError {
			logger.Error(http.StatusText(code), errors.Wrap(err, ctx.Request().Method+" "+ctx.Path()))
			if core.IsShutdown(err) {
				signalShutdown()
			}
			if ctx.Echo().Debug {
				message = err.Error()
			}
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead { // Issue #608
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, message)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}

// errorResponse returns the status code and body for err.
func errorResponse(err error) (int, interface{}) {
	var (
		httpErr  *echo.HTTPError
		vErrs    validator.ValidationErrors
		vErr     *core.ValidationError
		conflict *roster.ConflictError
	)
	switch {
	case errors.As(err, &httpErr):
		if inner, ok := httpErr.Internal.(*echo.HTTPError); ok {
			httpErr = inner
		}
		return httpErr.Code, httpErr.Message
	case errors.As(err, &vErrs):
		fldErrs := make(map[string]string, len(vErrs))
		for _, fe := range vErrs {
			fldErrs[fe.Field()] = fe.Translate(core.Translator)
		}
		return http.StatusBadRequest, fldErrs
	case errors.As(err, &vErr):
		if len(vErr.Fields) == 0 {
			return http.StatusBadRequest, vErr.Error()
		}
		fldErrs := make(map[string]string, len(vErr.Fields))
		for _, fe := range vErr.Fields {
			fldErrs[fe.Field] = fe.Error
		}
		return http.StatusBadRequest, fldErrs
	case errors.As(err, &conflict):
		return http.StatusConflict, conflict.Error()
	case errors.Is(err, roster.ErrNotFound):
		return http.StatusNotFound, http.StatusText(http.StatusNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "the import took too long"
	default:
		return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
	}
}
