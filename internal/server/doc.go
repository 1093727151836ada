// Package server exposes the list store over HTTP.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns, so two methods may share a path
// and an unregistered method on a known path answers 405.
//
// # API
//
// [API] implements [Handler] and serves:
//
//	GET  /api/lists             sorted lists with item counts
//	GET  /api/lists/stream      the same view as Server-Sent Events, re-sent on every change
//	GET  /api/lists/{id}/items  items of one list with decoded custom fields
//	POST /api/order             {"ids":[...]} stores a custom order
//	PUT  /api/sort              {"mode":"NAME"} switches the sort mode
//	GET  /api/export            the backup document
//	POST /api/import            imports a backup; without ?confirm=true answers 409 with a preview
//
// Errors are JSON objects of the form {"error": "..."} with a status derived from the error sentinel.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
