// Package http implements the HTTP handlers of pitpipe. Handlers stay thin:
// they parse path and query parameters, call the event or health service,
// and render JSON with chi/render.
//
// # Routes
//
// EventHandler.Routes is mounted under /api/v1:
//
//	GET  /calendar?from=&to=
//	GET  /factors
//	GET  /datasets
//	GET  /datasets/{dataset}
//	GET  /datasets/{dataset}/columns/{column}?from=&to=&assets=1,2
//	POST /datasets/{dataset}/load
//	GET  /datasets/{dataset}/factors
//	GET  /datasets/{dataset}/factors/{factor}?from=&to=&assets=1,2
//
// HealthHandler serves /healthz, /readyz, /livez and /version.
//
// # Error Handling
//
// Every failure goes through errors.ErrorHandler, which answers with an
// RFC 7807 problem document:
//
//	{
//	    "type": "/errors/column/unknown",
//	    "title": "Unknown Column",
//	    "status": 404,
//	    "detail": "loaders: don't know how to load column: CashDividends.bogus",
//	    "instance": "/api/v1/datasets/CashDividends/columns/bogus",
//	    "trace_id": "4bf92f3577b34da6a3ce929d0e0e4736"
//	}
package http
