package echoapi

import (
	"io"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/importer"
	"github.com/trezcool/rollcall/core/roster"
)

const (
	fileField = "file"
	roleField = "role"
	dayField  = "training_day_id"

	requiredText = "this field is required"
)

type URLImportRequest struct {
	URL           string `json:"url" validate:"required,url"`
	Role          string `json:"role" validate:"required,roster_role"`
	TrainingDayID int64  `json:"training_day_id" validate:"omitempty,min=1"`
}

func (ur *URLImportRequest) Validate() error {
	ur.URL = core.CleanString(ur.URL)
	return core.Validate.Struct(ur)
}

// Target is only meaningful after Validate.
func (ur *URLImportRequest) Target() importer.Target {
	role, _ := roster.ParseRole(ur.Role)
	return importer.Target{Role: role, TrainingDayID: ur.TrainingDayID}
}

type FormatsResponse struct {
	Extensions []string `json:"extensions"`
}

// bindRole reads the "role" form value, falling back to defaultRole when blank.
func bindRole(ctx echo.Context, defaultRole roster.Role) (roster.Role, error) {
	val := core.CleanString(ctx.FormValue(roleField))
	if val == "" {
		if defaultRole != "" {
			return defaultRole, nil
		}
		return "", core.NewValidationError(nil, core.FieldError{Field: roleField, Error: requiredText})
	}
	role, ok := roster.ParseRole(val)
	if !ok {
		return "", core.NewValidationError(nil, core.FieldError{Field: roleField, Error: "must be one of: cadet, staff"})
	}
	return role, nil
}

func bindDayID(ctx echo.Context) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param("dayID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NewValidationError(nil, core.FieldError{Field: dayField, Error: "must be a positive integer"})
	}
	return id, nil
}

// bindFile reads the uploaded "file" part.
func bindFile(ctx echo.Context) (filename string, data []byte, err error) {
	fh, err := ctx.FormFile(fileField)
	if err != nil {
		return "", nil, core.NewValidationError(nil, core.FieldError{Field: fileField, Error: requiredText})
	}
	f, err := fh.Open()
	if err != nil {
		return "", nil, errors.Wrap(err, "opening uploaded file")
	}
	defer func() { _ = f.Close() }()

	if data, err = io.ReadAll(f); err != nil {
		return "", nil, errors.Wrap(err, "reading uploaded file")
	}
	return fh.Filename, data, nil
}
