package contract

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	"contractapi/internal/apierror"
)

const jsonMediaType = "application/json"

// Parameter locations supported by the adapter.
const (
	InPath  = "path"
	InQuery = "query"
)

// Param is one declared path or query parameter.
type Param struct {
	Name     string
	In       string
	Required bool
	Schema   *openapi3.Schema

	spec *openapi3.Parameter
}

// Operation is one declared (method, path) endpoint. It is immutable once
// the table is built.
type Operation struct {
	ID            string
	Method        string
	Path          string
	Params        []Param
	Body          *openapi3.Schema
	BodyRequired  bool
	SuccessStatus int
	Responses     map[int]*openapi3.Schema
}

// HasBody reports whether the operation declares a JSON request body.
func (o *Operation) HasBody() bool {
	return o.Body != nil
}

// ResponseSchema returns the declared JSON schema for status, if any.
func (o *Operation) ResponseSchema(status int) *openapi3.Schema {
	return o.Responses[status]
}

// Table maps (method, path) pairs to declared operations.
type Table struct {
	router  routers.Router
	byID    map[string]*Operation
	byRoute map[string]*Operation
	methods []string
}

// Build compiles the document's paths into a Table. Operations without an
// operationId, or without a JSON body where a body is declared, are rejected.
func Build(doc *openapi3.T) (*Table, error) {
	t := &Table{
		byID:    make(map[string]*Operation),
		byRoute: make(map[string]*Operation),
	}

	templates := make([]string, 0, len(doc.Paths))
	for p := range doc.Paths {
		templates = append(templates, p)
	}
	sort.Strings(templates)

	methods := make(map[string]bool)
	for _, tmpl := range templates {
		item := doc.Paths[tmpl]
		for method, op := range item.Operations() {
			o, err := newOperation(method, tmpl, item, op)
			if err != nil {
				return nil, err
			}
			if _, dup := t.byID[o.ID]; dup {
				return nil, fmt.Errorf("duplicate operationId %q", o.ID)
			}
			t.byID[o.ID] = o
			t.byRoute[routeKey(o.Method, tmpl)] = o
			methods[o.Method] = true
		}
	}
	for m := range methods {
		t.methods = append(t.methods, m)
	}
	sortMethods(t.methods)

	// Paths are served from the root whatever the declared servers say.
	routed := *doc
	routed.Servers = nil
	router, err := gorillamux.NewRouter(&routed)
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}
	t.router = router
	return t, nil
}

func newOperation(method, tmpl string, item *openapi3.PathItem, op *openapi3.Operation) (*Operation, error) {
	if op.OperationID == "" {
		return nil, fmt.Errorf("%s %s: operationId is required", method, tmpl)
	}
	o := &Operation{
		ID:        op.OperationID,
		Method:    strings.ToUpper(method),
		Path:      tmpl,
		Responses: make(map[int]*openapi3.Schema),
	}

	// Operation-level parameters override path-level ones with the same name and location.
	seen := make(map[string]bool)
	for _, params := range []openapi3.Parameters{op.Parameters, item.Parameters} {
		for _, ref := range params {
			if ref == nil || ref.Value == nil {
				continue
			}
			p := ref.Value
			if p.In != InPath && p.In != InQuery {
				continue
			}
			key := p.In + ":" + p.Name
			if seen[key] {
				continue
			}
			seen[key] = true
			var schema *openapi3.Schema
			if p.Schema != nil {
				schema = p.Schema.Value
			}
			o.Params = append(o.Params, Param{
				Name:     p.Name,
				In:       p.In,
				Required: p.Required || p.In == InPath,
				Schema:   schema,
				spec:     p,
			})
		}
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		mt := op.RequestBody.Value.Content.Get(jsonMediaType)
		if mt == nil || mt.Schema == nil {
			return nil, fmt.Errorf("%s: request body must declare %s", o.ID, jsonMediaType)
		}
		o.Body = mt.Schema.Value
		o.BodyRequired = op.RequestBody.Value.Required
	}

	for code, ref := range op.Responses {
		status, err := strconv.Atoi(code)
		if err != nil || ref == nil || ref.Value == nil {
			continue
		}
		if status >= 200 && status < 300 && (o.SuccessStatus == 0 || status < o.SuccessStatus) {
			o.SuccessStatus = status
		}
		if mt := ref.Value.Content.Get(jsonMediaType); mt != nil && mt.Schema != nil {
			o.Responses[status] = mt.Schema.Value
		}
	}
	if o.SuccessStatus == 0 {
		return nil, fmt.Errorf("%s: no 2xx response declared", o.ID)
	}
	return o, nil
}

// Resolve finds the operation for method and path. It returns a
// NotFoundError when no template matches and a MethodNotAllowedError when
// the path matches but the method is not declared for it. Path parameter
// values are unescaped.
func (t *Table) Resolve(method, path string) (*Operation, map[string]string, error) {
	method = strings.ToUpper(method)
	raw := normalizePath(path)
	unescaped, err := url.PathUnescape(raw)
	if err != nil {
		return nil, nil, apierror.NotFound(fmt.Sprintf("no operation for %s %s", method, path))
	}
	u := &url.URL{Path: unescaped, RawPath: raw}

	op, vars, err := t.find(method, u)
	switch {
	case err == nil:
	case errors.Is(err, routers.ErrMethodNotAllowed):
		return nil, nil, apierror.MethodNotAllowed(t.allowed(u))
	default:
		return nil, nil, apierror.NotFound(fmt.Sprintf("no operation for %s %s", method, path))
	}

	var params map[string]string
	for name, v := range vars {
		unescaped, err := url.PathUnescape(v)
		if err != nil || unescaped == "" {
			return nil, nil, apierror.NotFound(fmt.Sprintf("no operation for %s %s", method, path))
		}
		if params == nil {
			params = make(map[string]string, len(vars))
		}
		params[name] = unescaped
	}
	return op, params, nil
}

func (t *Table) find(method string, u *url.URL) (*Operation, map[string]string, error) {
	route, params, err := t.router.FindRoute(&http.Request{Method: method, URL: u})
	if err != nil {
		return nil, nil, err
	}
	op, ok := t.byRoute[routeKey(route.Method, route.Path)]
	if !ok {
		return nil, nil, routers.ErrPathNotFound
	}
	return op, params, nil
}

// allowed lists the declared methods that resolve for u.
func (t *Table) allowed(u *url.URL) []string {
	var out []string
	for _, m := range t.methods {
		if _, _, err := t.find(m, u); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// Operation returns the operation with the given operationId.
func (t *Table) Operation(id string) (*Operation, bool) {
	op, ok := t.byID[id]
	return op, ok
}

// Operations returns every operation ordered by path then method.
func (t *Table) Operations() []*Operation {
	out := make([]*Operation, 0, len(t.byID))
	for _, op := range t.byID {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// Len returns the number of operations in the table.
func (t *Table) Len() int {
	return len(t.byID)
}

func routeKey(method, tmpl string) string {
	return strings.ToUpper(method) + " " + tmpl
}

func sortMethods(ms []string) {
	sort.Slice(ms, func(i, j int) bool {
		ri, rj := methodRank(ms[i]), methodRank(ms[j])
		if ri != rj {
			return ri < rj
		}
		return ms[i] < ms[j]
	})
}

func methodRank(m string) int {
	switch m {
	case http.MethodGet:
		return 0
	case http.MethodPost:
		return 1
	case http.MethodPut:
		return 2
	case http.MethodPatch:
		return 3
	case http.MethodDelete:
		return 4
	default:
		return 5
	}
}

// normalizePath drops a trailing slash so "/items/" resolves like "/items".
func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}
