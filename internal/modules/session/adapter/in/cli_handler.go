package in

import (
	"context"
	"fmt"
	"strings"

	sessiondto "devtrack/internal/modules/session/dto"
	sessionin "devtrack/internal/modules/session/port/in"
	apperrors "devtrack/internal/platform/errors"
)

type CLIHandler struct {
	usecase sessionin.Usecase
}

func NewCLIHandler(usecase sessionin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Start(ctx context.Context, project string) (sessiondto.StartOutput, error) {
	return h.usecase.Start(ctx, sessiondto.StartInput{Project: project})
}

func (h CLIHandler) Stop(ctx context.Context) (sessiondto.StopOutput, error) {
	return h.usecase.Stop(ctx)
}

func (h CLIHandler) Status(ctx context.Context) (sessiondto.StatusOutput, error) {
	return h.usecase.Status(ctx)
}

func (h CLIHandler) Report(ctx context.Context, today bool) (sessiondto.ReportOutput, error) {
	return h.usecase.Report(ctx, sessiondto.ReportInput{Today: today})
}

func (h CLIHandler) ProjectReport(ctx context.Context) (sessiondto.ProjectReportOutput, error) {
	return h.usecase.ProjectReport(ctx)
}

func (h CLIHandler) ConfigGet(ctx context.Context, key string) (sessiondto.ConfigEntry, error) {
	return h.usecase.ConfigGet(ctx, key)
}

// ConfigSet takes the raw key=value argument; the value may itself contain '='.
func (h CLIHandler) ConfigSet(ctx context.Context, assignment string) (sessiondto.ConfigEntry, error) {
	key, value, ok := strings.Cut(assignment, "=")
	if !ok || key == "" || value == "" {
		return sessiondto.ConfigEntry{}, fmt.Errorf("%w: use --set key=value", apperrors.ErrInvalidInput)
	}
	return h.usecase.ConfigSet(ctx, sessiondto.ConfigSetInput{Key: key, Value: value})
}

func (h CLIHandler) ConfigList(ctx context.Context) ([]sessiondto.ConfigEntry, error) {
	return h.usecase.ConfigList(ctx)
}

func (h CLIHandler) Reindex(ctx context.Context) (sessiondto.ReindexOutput, error) {
	return h.usecase.Reindex(ctx)
}

func (h CLIHandler) Export(ctx context.Context, dir string) (sessiondto.ExportOutput, error) {
	return h.usecase.Export(ctx, sessiondto.ExportInput{Dir: dir})
}
