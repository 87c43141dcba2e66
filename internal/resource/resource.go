// Package resource exposes a document store as REST routes.
//
// For a base path such as /stream-item, Mount declares:
//
//	GET    /stream-item          list, optionally filtered by ?field=value
//	GET    /stream-item/{id}     one document
//	POST   /stream-item          create, 201
//	PUT    /stream-item/{id}     shallow merge
//	PATCH  /stream-item/{id}     shallow merge
//	PATCH  /stream-item?f=v      shallow merge into every match
//	DELETE /stream-item/{id}     remove, 204
//	DELETE /stream-item?f=v      remove every match
//
// Filters compare the text form of a field with the query value; several
// parameters must all match. Bulk PATCH and DELETE require a filter.
package resource

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/roach88/dstore/internal/api"
	"github.com/roach88/dstore/internal/record"
	"github.com/roach88/dstore/internal/store"
)

const maxBodyBytes = 1 << 20

// Repository is the store surface the routes use.
type Repository interface {
	Name() string
	Create(doc record.Document) error
	ReadAll() []record.Document
	ReadWhere(pred func(record.Document) bool) []record.Document
	Get(id int64) (record.Document, bool)
	Update(id int64, patch record.Patch) error
	UpdateWhere(pred func(record.Document) bool, patch record.Patch) (int, error)
	Delete(id int64) error
	DeleteWhere(pred func(record.Document) bool) (int, error)
}

// Count is the body returned by bulk updates and deletes.
type Count struct {
	Matched int `json:"matched"`
}

// Mount declares the routes for repo under base.
func Mount(a *api.API, base string, repo Repository) *api.API {
	base = "/" + strings.Trim(base, "/")
	item := base + "/{id}"
	h := handlers{repo: repo}

	a.Get(base).Func(h.list)
	a.Get(item).Func(h.get)
	a.Post(base).Status(http.StatusCreated).Func(h.create)
	a.Put(item).Func(h.update)
	a.Patch(item).Func(h.update)
	a.Patch(base).Func(h.updateWhere)
	a.Delete(item).Func(h.remove)
	a.Delete(base).Func(h.removeWhere)
	return a
}

type handlers struct {
	repo Repository
}

func (h handlers) list(r *http.Request) (any, error) {
	q := r.URL.Query()
	if len(q) == 0 {
		return h.repo.ReadAll(), nil
	}
	return h.repo.ReadWhere(Filter(q)), nil
}

func (h handlers) get(r *http.Request) (any, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}
	doc, ok := h.repo.Get(id)
	if !ok {
		return nil, api.NewError(http.StatusNotFound, string(store.CodeNotFound), fmt.Sprintf("key %d not found", id))
	}
	return doc, nil
}

func (h handlers) create(r *http.Request) (any, error) {
	data, err := readBody(r)
	if err != nil {
		return nil, err
	}
	doc, err := record.Decode[record.Document](data)
	if err != nil {
		return nil, api.BadRequest("body must be a JSON object: %v", err)
	}
	if doc == nil {
		return nil, api.BadRequest("body must be a JSON object")
	}
	if err := h.repo.Create(doc); err != nil {
		return nil, storeError(err)
	}
	return doc, nil
}

func (h handlers) update(r *http.Request) (any, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}
	patch, err := readPatch(r)
	if err != nil {
		return nil, err
	}
	if err := h.repo.Update(id, patch); err != nil {
		return nil, storeError(err)
	}
	doc, _ := h.repo.Get(id)
	return doc, nil
}

func (h handlers) updateWhere(r *http.Request) (any, error) {
	q := r.URL.Query()
	if len(q) == 0 {
		return nil, api.BadRequest("bulk update requires a filter")
	}
	patch, err := readPatch(r)
	if err != nil {
		return nil, err
	}
	n, err := h.repo.UpdateWhere(Filter(q), patch)
	if err != nil {
		return nil, storeError(err)
	}
	return Count{Matched: n}, nil
}

func (h handlers) remove(r *http.Request) (any, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}
	if err := h.repo.Delete(id); err != nil {
		return nil, storeError(err)
	}
	return nil, nil
}

func (h handlers) removeWhere(r *http.Request) (any, error) {
	q := r.URL.Query()
	if len(q) == 0 {
		return nil, api.BadRequest("bulk delete requires a filter")
	}
	n, err := h.repo.DeleteWhere(Filter(q))
	if err != nil {
		return nil, storeError(err)
	}
	return Count{Matched: n}, nil
}

func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, api.BadRequest("invalid id %q", raw)
	}
	return id, nil
}

func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		return nil, api.BadRequest("read body: %v", err)
	}
	if len(data) == 0 {
		return nil, api.BadRequest("empty body")
	}
	return data, nil
}

func readPatch(r *http.Request) (record.Patch, error) {
	data, err := readBody(r)
	if err != nil {
		return nil, err
	}
	doc, err := record.Decode[record.Document](data)
	if err != nil || doc == nil {
		return nil, api.BadRequest("patch must be a JSON object")
	}
	return record.Patch(doc), nil
}

// Filter returns a predicate requiring every parameter to match one of its
// values. A field matches when its text form equals the value.
func Filter(q url.Values) func(record.Document) bool {
	return func(doc record.Document) bool {
		for field, values := range q {
			v, ok := doc[field]
			if !ok {
				return false
			}
			text := textOf(v)
			matched := false
			for _, want := range values {
				if text == want {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		}
		return true
	}
}

func textOf(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// storeError maps store error codes to HTTP statuses.
func storeError(err error) error {
	code := store.ErrorCode(err)
	var status int
	switch code {
	case store.CodeNotFound:
		status = http.StatusNotFound
	case store.CodeDuplicateKey:
		status = http.StatusConflict
	case store.CodeIdentifierImmutable, store.CodeInvalidRecord:
		status = http.StatusUnprocessableEntity
	case store.CodeClosed:
		status = http.StatusServiceUnavailable
	default:
		return err
	}
	return api.WrapError(status, string(code), err)
}
