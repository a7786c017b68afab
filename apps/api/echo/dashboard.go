package echoapi

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/brightwater/swereport/core"
	"github.com/brightwater/swereport/core/project"
	"github.com/brightwater/swereport/core/report"
	"github.com/brightwater/swereport/core/session"
)

type (
	dashboard struct {
		conf     *core.Config
		projects ProjectLister
	}

	pageData struct {
		AppName  string
		Projects []string
		Snapshot session.Snapshot
		Tables   []report.Table
		Error    string // failure of the last action or load
	}

	snapshotResponse struct {
		Project      string         `json:"project"`
		Theme        session.Theme  `json:"theme"`
		Generation   uint64         `json:"generation"`
		Loading      bool           `json:"loading"`
		ViewsProject string         `json:"viewsProject,omitempty"`
		Views        []report.Table `json:"views"`
	}
)

func newSnapshotResponse(snap session.Snapshot) snapshotResponse {
	res := snapshotResponse{
		Project:      snap.Project,
		Theme:        snap.Theme,
		Generation:   snap.Generation,
		Loading:      snap.Loading,
		ViewsProject: snap.ViewsProject,
		Views:        []report.Table{},
	}
	if snap.HasViews() {
		res.Views = []report.Table{snap.RecentWeeks, snap.Cumulative}
	}
	return res
}

func wantsHTML(ctx echo.Context) bool {
	return strings.Contains(ctx.Request().Header.Get(echo.HeaderAccept), echo.MIMETextHTML)
}

// settled opens the session and waits for the views being loaded, up to the fetch timeout.
// A snapshot still loading is returned when the wait times out.
func (d dashboard) settled(ctx echo.Context, sess *session.Session) (session.Snapshot, error) {
	snap, err := sess.Dispatch(ctx.Request().Context(), session.Open{})
	if err != nil || !snap.Loading {
		return snap, err
	}
	wctx, cancel := context.WithTimeout(ctx.Request().Context(), d.conf.Fetch.Timeout)
	defer cancel()
	if settled, err := sess.Await(wctx, snap.Generation); err == nil {
		return settled, nil
	} else if errors.Cause(err) != context.DeadlineExceeded {
		return snap, err
	}
	return sess.Snapshot(ctx.Request().Context())
}

func (d dashboard) render(ctx echo.Context, code int, snap session.Snapshot, actionErr error) error {
	data := pageData{
		AppName:  d.conf.AppName,
		Projects: project.Labels(),
		Snapshot: snap,
		Tables:   []report.Table{snap.RecentWeeks, snap.Cumulative},
	}
	if actionErr != nil {
		data.Error = actionErr.Error()
	} else if snap.Err != nil {
		data.Error = snap.Err.Error()
	}
	if !snap.HasViews() {
		data.Tables = []report.Table{
			{Title: report.TitleRecentWeeks},
			{Title: report.TitleCumulative},
		}
	}
	return ctx.Render(code, "dashboard", data)
}

// Handlers

func (d dashboard) page(ctx echo.Context) error {
	sess, ok := contextSession(ctx)
	if !ok {
		return errNoSession
	}
	snap, err := d.settled(ctx, sess)
	if err != nil {
		return errors.Wrap(err, "getting session snapshot")
	}
	return d.render(ctx, http.StatusOK, snap, nil)
}

func (d dashboard) selectProject(ctx echo.Context) error {
	sess, ok := contextSession(ctx)
	if !ok {
		return errNoSession
	}
	var form projectForm
	if err := form.Bind(ctx); err != nil {
		return err
	}

	snap, err := sess.Dispatch(ctx.Request().Context(), session.SelectProject{Label: form.Project})
	if err != nil {
		if core.IsUnknownProject(err) && wantsHTML(ctx) {
			return d.render(ctx, http.StatusNotFound, snap, err)
		}
		return err
	}
	if wantsHTML(ctx) {
		return ctx.Redirect(http.StatusSeeOther, "/")
	}
	return ctx.JSON(http.StatusAccepted, newSnapshotResponse(snap))
}

func (d dashboard) setTheme(ctx echo.Context) error {
	sess, ok := contextSession(ctx)
	if !ok {
		return errNoSession
	}
	var form themeForm
	if err := form.Bind(ctx); err != nil {
		return err
	}

	snap, err := sess.Dispatch(ctx.Request().Context(), form.Event())
	if err != nil {
		return err
	}
	if wantsHTML(ctx) {
		return ctx.Redirect(http.StatusSeeOther, "/")
	}
	return ctx.JSON(http.StatusOK, newSnapshotResponse(snap))
}

// refresh refetches the selected project.
func (d dashboard) refresh(ctx echo.Context) error {
	sess, ok := contextSession(ctx)
	if !ok {
		return errNoSession
	}
	snap, err := sess.Dispatch(ctx.Request().Context(), session.Refresh{})
	if err != nil {
		return err
	}
	if wantsHTML(ctx) {
		return ctx.Redirect(http.StatusSeeOther, "/")
	}
	return ctx.JSON(http.StatusAccepted, newSnapshotResponse(snap))
}

func (d dashboard) listProjects(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, d.projects.Projects())
}

// views returns the session's views once loaded; a failed load is reported through its error status.
func (d dashboard) views(ctx echo.Context) error {
	sess, ok := contextSession(ctx)
	if !ok {
		return errNoSession
	}
	snap, err := d.settled(ctx, sess)
	if err != nil {
		return errors.Wrap(err, "getting session snapshot")
	}
	if snap.Err != nil {
		return snap.Err
	}
	return ctx.JSON(http.StatusOK, newSnapshotResponse(snap))
}

func (d dashboard) export(ctx echo.Context) error {
	sess, ok := contextSession(ctx)
	if !ok {
		return errNoSession
	}
	snap, err := d.settled(ctx, sess)
	if err != nil {
		return errors.Wrap(err, "getting session snapshot")
	}
	if snap.Err != nil {
		return snap.Err
	}
	if !snap.HasViews() {
		return errNoViews
	}

	var buf bytes.Buffer
	if err := report.WriteWorkbook(&buf, snap.RecentWeeks, snap.Cumulative); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition,
		`attachment; filename="`+report.WorkbookFilename(snap.ViewsProject)+`"`)
	return ctx.Blob(http.StatusOK, report.WorkbookContentType, buf.Bytes())
}
