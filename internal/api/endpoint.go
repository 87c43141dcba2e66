package api

import (
	"encoding/json"
	"net/http"
)

// Content types set by PlainText and JSON.
const (
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypeJSON = "application/json"
)

// HandlerFunc produces the response value for a request.
type HandlerFunc func(r *http.Request) (any, error)

// Endpoint is one method and path bound to a handler.
type Endpoint struct {
	api         *API
	method      string
	path        string
	contentType string
	status      int
	handler     HandlerFunc
}

// Method returns the HTTP method.
func (e *Endpoint) Method() string { return e.method }

// Path returns the path pattern.
func (e *Endpoint) Path() string { return e.path }

// Content makes the endpoint answer with a constant plain text body.
func (e *Endpoint) Content(body string) *Endpoint {
	e.PlainText()
	e.handler = func(*http.Request) (any, error) { return body, nil }
	return e
}

// PlainText sets the content type for string results.
func (e *Endpoint) PlainText() *Endpoint {
	e.contentType = ContentTypeText
	return e
}

// JSON labels string results application/json. The string is sent as
// is, so it should already be encoded JSON.
func (e *Endpoint) JSON() *Endpoint {
	e.contentType = ContentTypeJSON
	return e
}

// Func sets the handler.
func (e *Endpoint) Func(h HandlerFunc) *Endpoint {
	e.handler = h
	return e
}

// Status sets the status used for non-empty successful responses.
// Defaults to 200.
func (e *Endpoint) Status(code int) *Endpoint {
	e.status = code
	return e
}

// API returns the owning API for chaining.
func (e *Endpoint) API() *API {
	return e.api
}

func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if e.handler == nil {
		notFound(w)
		return
	}

	result, err := e.handler(r)
	if err != nil {
		e.writeError(w, r, err)
		return
	}

	status := e.status
	if status == 0 {
		status = http.StatusOK
	}

	switch v := result.(type) {
	case nil:
		w.WriteHeader(http.StatusNoContent)
	case string:
		contentType := ContentTypeText
		if e.contentType == ContentTypeJSON {
			contentType = ContentTypeJSON
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		w.Write([]byte(v))
	default:
		writeJSON(w, status, v)
	}
}

func (e *Endpoint) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr, known := asError(err)
	if !known {
		e.api.logger.Error("handler failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestID(r.Context()),
			"error", err,
		)
	}
	writeJSON(w, apiErr.Status, errorBody{Error: errorDetail{Code: apiErr.Code, Message: apiErr.Message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	w.Write(data)
}

func notFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", ContentTypeText)
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte("Not Found"))
}
