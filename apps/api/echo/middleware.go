package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/asistencia/core/attendance"
)

const contextObjectKey = "object"

// listMiddleware loads the list of the ":id" path param into the context.
func listMiddleware(svc *attendance.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			list, err := svc.GetList(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				return err
			}
			ctx.Set(contextObjectKey, list)
			return next(ctx)
		}
	}
}

func getContextList(ctx echo.Context) (attendance.List, error) {
	if list, ok := ctx.Get(contextObjectKey).(attendance.List); ok {
		return list, nil
	}
	return attendance.List{}, errHttpNotFound
}
