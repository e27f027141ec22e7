package roster

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/rollcall/core"
)

var (
	rosterRoleTag  = "roster_role"
	rosterRoleText = "must be one of: cadet, staff"
)

func init() {
	_ = core.Validate.RegisterValidation(rosterRoleTag, rosterRoleValidation)
	core.RegisterCustomTranslation(core.Validate, core.Translator, rosterRoleTag, rosterRoleText)
}

// rosterRoleValidation accepts anything ParseRole understands.
func rosterRoleValidation(fl validator.FieldLevel) bool {
	if s, ok := fl.Field().Interface().(string); ok {
		_, valid := ParseRole(s)
		return valid
	}
	return false
}
