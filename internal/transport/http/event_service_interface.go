package http

import (
	"context"

	"pitpipe/internal/services"
	api "pitpipe/pkg/contracts/api/v1"
)

// EventServiceInterface is the part of services.EventService the handlers use
type EventServiceInterface interface {
	Datasets() []api.DatasetInfo
	Dataset(name string) (api.DatasetInfo, error)
	Factors(dataset string) []api.FactorInfo
	Sessions(req api.DateRangeRequest) (*api.CalendarResponse, error)
	Load(ctx context.Context, req api.LoadRequest) (*api.LoadResponse, error)
	ComputeFactor(ctx context.Context, req api.FactorRequest) (*api.FactorResponse, error)
}

var _ EventServiceInterface = (*services.EventService)(nil)
