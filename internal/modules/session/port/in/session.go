package in

import (
	"context"

	"devtrack/internal/modules/session/dto"
)

type Usecase interface {
	Start(ctx context.Context, input dto.StartInput) (dto.StartOutput, error)
	Stop(ctx context.Context) (dto.StopOutput, error)
	Status(ctx context.Context) (dto.StatusOutput, error)
	Report(ctx context.Context, input dto.ReportInput) (dto.ReportOutput, error)
	ProjectReport(ctx context.Context) (dto.ProjectReportOutput, error)

	ConfigGet(ctx context.Context, key string) (dto.ConfigEntry, error)
	ConfigSet(ctx context.Context, input dto.ConfigSetInput) (dto.ConfigEntry, error)
	ConfigList(ctx context.Context) ([]dto.ConfigEntry, error)

	ListSessions(ctx context.Context) ([]dto.Session, error)
	CreateSession(ctx context.Context, input dto.CreateSessionInput) (dto.Session, error)
	UpdateSession(ctx context.Context, input dto.UpdateSessionInput) (dto.Session, error)
	DeleteSession(ctx context.Context, id string) error

	Reindex(ctx context.Context) (dto.ReindexOutput, error)
	Export(ctx context.Context, input dto.ExportInput) (dto.ExportOutput, error)
}
