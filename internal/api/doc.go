// Package api is a small fluent HTTP layer.
//
// Endpoints are declared by method and path and given either constant
// content or a handler function:
//
//	a := api.New()
//	a.Get("/stream-item").Func(func(r *http.Request) (any, error) {
//		return items.ReadAll(), nil
//	}).API().
//		Get("/health").Content("ok").API().
//		LogEndpoints()
//
// A handler's result decides the response: a string is sent as is,
// labelled text/plain or, after JSON(), application/json; nil as 204 No Content, anything else as JSON. A returned
// *Error carries its own status; any other error is a 500. Requests for an
// unknown method or path get 404 "Not Found".
package api
