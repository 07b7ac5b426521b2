package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/asistencia/core"
	"github.com/trezcool/asistencia/core/attendance"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

func bindListFilter(ctx echo.Context) attendance.ListFilter {
	return attendance.ListFilter{Search: ctx.QueryParam("search")}
}

func bindRosterFilter(ctx echo.Context) attendance.RosterFilter {
	return attendance.RosterFilter{
		Search:     ctx.QueryParam("search"),
		Attendance: ctx.QueryParam("attendance"),
		Order:      ctx.QueryParam("order"),
	}
}
