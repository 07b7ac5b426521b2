package echoapi

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/asistencia/core/attendance"
	"github.com/trezcool/asistencia/services/export"
)

type (
	attendanceApi struct {
		svc       *attendance.Service
		validate  *validator.Validate
		maxUpload int64
	}

	MarkAttendanceRequest struct {
		Present *bool `json:"present" validate:"required"`
	}

	EmailReportRequest struct {
		Recipients []string `json:"recipients" validate:"required,min=1,max=20,dive,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (r *MarkAttendanceRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

func (r *EmailReportRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

func (r EmailReportRequest) addresses() []mail.Address {
	addrs := make([]mail.Address, 0, len(r.Recipients))
	for _, rcpt := range r.Recipients {
		addrs = append(addrs, mail.Address{Address: rcpt})
	}
	return addrs
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, api *attendanceApi) {
	lg := g.Group("/lists", jwt)
	lg.GET("", api.queryLists)
	lg.POST("", api.createList)

	// detail endpoints
	dg := lg.Group("/:id", listMiddleware(api.svc))
	dg.GET("", api.retrieveList)
	dg.DELETE("", api.destroyList)
	dg.GET("/summary", api.summary)
	dg.GET("/export", api.export)
	dg.POST("/export/email", api.emailReport)

	// roster endpoints
	upload := middleware.BodyLimit(fmt.Sprintf("%dK", (api.maxUpload+1<<20)/1024))
	sg := dg.Group("/students")
	sg.GET("", api.queryRoster)
	sg.POST("", api.addStudent)
	sg.POST("/import", api.importFile, upload)
	sg.POST("/preview", api.previewFile, upload)
	sg.PUT("/:entryId", api.updateStudent)
	sg.DELETE("/:entryId", api.removeStudent)
	sg.PATCH("/:entryId/attendance", api.markAttendance)
	sg.POST("/:entryId/toggle", api.toggleAttendance)
}

// Lists

func (api *attendanceApi) queryLists(ctx echo.Context) error {
	var ord Ordering
	ord.Bind(ctx)

	lists, err := api.svc.QueryLists(ctx.Request().Context(), bindListFilter(ctx), ord.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying lists")
	}
	return ctx.JSON(http.StatusOK, lists)
}

func (api *attendanceApi) createList(ctx echo.Context) error {
	var data attendance.NewList
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewList")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	list, err := api.svc.CreateList(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating list")
	}
	return ctx.JSON(http.StatusCreated, list)
}

func (api *attendanceApi) retrieveList(ctx echo.Context) error {
	list, err := getContextList(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *attendanceApi) destroyList(ctx echo.Context) error {
	list, err := getContextList(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteList(ctx.Request().Context(), list.ID); err != nil {
		return errors.Wrap(err, "deleting list")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attendanceApi) summary(ctx echo.Context) error {
	list, err := getContextList(ctx)
	if err != nil {
		return err
	}
	sum, err := api.svc.Summary(ctx.Request().Context(), list.ID)
	if err != nil {
		return errors.Wrap(err, "computing summary")
	}
	return ctx.JSON(http.StatusOK, sum)
}

// Exports

func (api *attendanceApi) export(ctx echo.Context) error {
	list, err := getContextList(ctx)
	if err != nil {
		return err
	}
	renderer, ok := export.ByFormat(ctx.QueryParam("format"))
	if !ok {
		return errInvalidFormat
	}

	report, err := api.svc.BuildReport(ctx.Request().Context(), list.ID, bindRosterFilter(ctx))
	if err != nil {
		return errors.Wrap(err, "building report")
	}
	var buf bytes.Buffer
	if err = renderer.Render(&buf, report); err != nil {
		return errors.Wrap(err, "rendering report")
	}

	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", renderer.Filename(report)))
	return ctx.Blob(http.StatusOK, renderer.ContentType(), buf.Bytes())
}

func (api *attendanceApi) emailReport(ctx echo.Context) error {
	list, err := getContextList(ctx)
	if err != nil {
		return err
	}
	var data EmailReportRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailReportRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if err = api.svc.EmailReport(ctx.Request().Context(), list.ID, data.addresses()); err != nil {
		return errors.Wrap(err, "emailing report")
	}
	return ctx.JSON(http.StatusAccepted, SuccessResponse{Success: "the report will be emailed shortly"})
}

// Roster

func (api *attendanceApi) queryRoster(ctx echo.Context) error {
	list, err := getContextList(ctx)
	if err != nil {
		return err
	}
	entries, err := api.svc.QueryRoster(ctx.Request().Context(), list.ID, bindRosterFilter(ctx))
	if err != nil {
		return errors.Wrap(err, "querying roster")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *attendanceApi) addStudent(ctx echo.Context) error {
	list, err := getContextList(ctx)
	if err != nil {
		return err
	}
	var data attendance.NewStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	entry, err := api.svc.AddStudent(ctx.Request().Context(), list.ID, data)
	if err != nil {
		return errors.Wrap(err, "adding student")
	}
	return ctx.JSON(http.StatusCreated, entry)
}

// formFile returns the uploaded "file" and its header. The caller closes the file.
func formFile(ctx echo.Context) (multipart.File, *multipart.FileHeader, error) {
	fh, err := ctx.FormFile("file")
	if err != nil {
		if err == http.ErrMissingFile || err == http.ErrNotMultipart {
			return nil, nil, errFileRequired
		}
		return nil, nil, errors.Wrap(err, "reading form file")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening form file")
	}
	return f, fh, nil
}

func (api *attendanceApi) importFile(ctx echo.Context) error {
	list, err := getContextList(ctx)
	if err != nil {
		return err
	}
	f, fh, err := formFile(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	res, err := api.svc.ImportFile(ctx.Request().Context(), list.ID, fh.Filename, fh.Size, f)
	if err != nil {
		return errors.Wrap(err, "importing file")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *attendanceApi) previewFile(ctx echo.Context) error {
	if _, err := getContextList(ctx); err != nil {
		return err
	}
	f, fh, err := formFile(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	res, err := api.svc.ReadFile(fh.Filename, fh.Size, f)
	if err != nil {
		return errors.Wrap(err, "reading file")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *attendanceApi) updateStudent(ctx echo.Context) error {
	list, err := getContextList(ctx)
	if err != nil {
		return err
	}
	var data attendance.UpdateStudent
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	entry, err := api.svc.UpdateStudent(ctx.Request().Context(), list.ID, ctx.Param("entryId"), data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (api *attendanceApi) removeStudent(ctx echo.Context) error {
	list, err := getContextList(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.RemoveStudent(ctx.Request().Context(), list.ID, ctx.Param("entryId")); err != nil {
		return errors.Wrap(err, "removing student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attendanceApi) markAttendance(ctx echo.Context) error {
	list, err := getContextList(ctx)
	if err != nil {
		return err
	}
	ins, err := getContextInstructor(ctx)
	if err != nil {
		return err
	}
	var data MarkAttendanceRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkAttendanceRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	entry, err := api.svc.MarkAttendance(ctx.Request().Context(), list.ID, ctx.Param("entryId"), *data.Present, ins)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (api *attendanceApi) toggleAttendance(ctx echo.Context) error {
	list, err := getContextList(ctx)
	if err != nil {
		return err
	}
	ins, err := getContextInstructor(ctx)
	if err != nil {
		return err
	}

	entry, err := api.svc.ToggleAttendance(ctx.Request().Context(), list.ID, ctx.Param("entryId"), ins)
	if err != nil {
		return errors.Wrap(err, "toggling attendance")
	}
	return ctx.JSON(http.StatusOK, entry)
}
