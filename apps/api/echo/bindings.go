package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/brightwater/swereport/core"
	"github.com/brightwater/swereport/core/session"
)

type (
	projectForm struct {
		Project string `form:"project" json:"project" validate:"required"`
	}

	themeForm struct {
		Theme string `form:"theme" json:"theme" validate:"omitempty,oneof=light dark"`
	}
)

func (f *projectForm) Bind(ctx echo.Context) error {
	if err := ctx.Bind(f); err != nil {
		return errors.Wrap(err, "binding to projectForm")
	}
	return ctx.Validate(f) // labels are matched exactly
}

func (f *themeForm) Bind(ctx echo.Context) error {
	if err := ctx.Bind(f); err != nil {
		return errors.Wrap(err, "binding to themeForm")
	}
	f.Theme = core.CleanString(f.Theme, true)
	return ctx.Validate(f)
}

// Event is the session event requested by the form: a toggle when no theme is given.
func (f themeForm) Event() session.Event {
	if f.Theme == "" {
		return session.ToggleTheme{}
	}
	return session.SetTheme{Theme: session.Theme(f.Theme)}
}
