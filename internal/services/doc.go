// Package services implements the business logic layer of pitpipe.
// It sits between the HTTP handlers and CLI commands on one side and the
// loaders on the other, so request rules are centralized and testable.
//
// # Available Services
//
//   - EventService: resolves date ranges against the trading calendar,
//     validates requests, dispatches loads to the registered dataset loaders
//     and computes the business-day distance factors
//   - HealthService: liveness, readiness and version information
//
// # Common Service Pattern
//
//	svc, err := services.NewEventService(calendar,
//	    services.WithLogger(logger),
//	    services.WithMetrics(metrics),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := svc.Register(domain.CashDividends, loader, "csv"); err != nil {
//	    return err
//	}
//	resp, err := svc.Load(ctx, req)
//
// # Error Handling
//
// Services return sentinel errors that handlers transform with errors.Is:
//
//   - ErrInvalidRequest, ErrInvalidRange for malformed input
//   - ErrUnknownDataset, ErrUnknownFactor for missing resources
//   - ErrRequestTooLarge when a request exceeds the cell limit
//
// Errors from the loaders are wrapped, never replaced.
package services
