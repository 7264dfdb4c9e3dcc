package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contractapi/internal/apierror"
	"contractapi/internal/codec"
	"contractapi/internal/contract"
	"contractapi/internal/http/middleware"
	"contractapi/internal/model"
)

const widgetsDoc = `
openapi: 3.0.3
info: {title: widgets, version: "1"}
paths:
  /widgets:
    get:
      operationId: listWidgets
      responses:
        "200": {description: ok}
    post:
      operationId: createWidget
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
              additionalProperties: false
              required: [name]
              properties:
                name: {type: string, minLength: 1}
                madeAt: {type: string, format: date-time}
      responses:
        "201":
          description: created
          content:
            application/json:
              schema:
                type: object
                additionalProperties: false
                required: [id, name]
                properties:
                  id: {type: integer}
                  name: {type: string}
                  madeAt: {type: string, format: date-time}
  /widgets/{id}:
    get:
      operationId: getWidget
      parameters:
        - {name: id, in: path, required: true, schema: {type: integer, minimum: 1}}
        - {name: verbose, in: query, schema: {type: boolean}}
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                type: object
                required: [id, name]
                properties:
                  id: {type: integer}
                  name: {type: string}
    delete:
      operationId: deleteWidget
      parameters:
        - {name: id, in: path, required: true, schema: {type: integer}}
      responses:
        "204": {description: deleted}
`

type widgetBody struct {
	Name   string          `json:"name" validate:"required,max=8"`
	MadeAt *codec.DateTime `json:"madeAt,omitempty"`
}

type widget struct {
	ID     int             `json:"id,omitempty"`
	Name   string          `json:"name"`
	MadeAt *codec.DateTime `json:"madeAt,omitempty"`
}

type widgetParams struct {
	ID      int   `json:"id"`
	Verbose *bool `json:"verbose,omitempty"`
}

func newTable(t *testing.T) *contract.Table {
	t.Helper()
	doc, err := contract.Parse(context.Background(), []byte(widgetsDoc))
	require.NoError(t, err)
	table, err := contract.Build(doc)
	require.NoError(t, err)
	return table
}

type harness struct {
	app     *fiber.App
	adapter *Adapter
	calls   atomic.Int32
}

// newHarness binds every widget operation. Overrides replace the default
// binding for the given operationId.
func newHarness(t *testing.T, opts Options, overrides map[string]Binding) *harness {
	t.Helper()
	h := &harness{adapter: New(newTable(t), opts)}

	bindings := map[string]Binding{
		"listWidgets": Bind(func(ctx context.Context, req Request[None, None]) ([]widget, error) {
			h.calls.Add(1)
			return []widget{{ID: 1, Name: "one"}}, nil
		}),
		"createWidget": Bind(func(ctx context.Context, req Request[None, widgetBody]) (widget, error) {
			h.calls.Add(1)
			return widget{ID: 42, Name: req.Body.Name, MadeAt: req.Body.MadeAt}, nil
		}),
		"getWidget": Bind(func(ctx context.Context, req Request[widgetParams, None]) (widget, error) {
			h.calls.Add(1)
			if req.Params.ID == 404 {
				return widget{}, apierror.NotFound("widget not found")
			}
			name := "plain"
			if req.Params.Verbose != nil && *req.Params.Verbose {
				name = "verbose"
			}
			return widget{ID: req.Params.ID, Name: name}, nil
		}),
		"deleteWidget": Bind(func(ctx context.Context, req Request[widgetParams, None]) (None, error) {
			h.calls.Add(1)
			return None{}, nil
		}),
	}
	for id, b := range overrides {
		bindings[id] = b
	}
	for id, b := range bindings {
		require.NoError(t, h.adapter.Register(id, b))
	}
	require.NoError(t, h.adapter.Verify())

	h.app = fiber.New(fiber.Config{ErrorHandler: ErrorHandler(nil)})
	h.app.Use(middleware.RequestID())
	h.app.Use(h.adapter.Handler())
	return h
}

func (h *harness) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := h.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func errorBody(t *testing.T, data []byte) model.ErrorResponse {
	t.Helper()
	var out model.ErrorResponse
	require.NoError(t, codec.Unmarshal(data, &out))
	return out
}

func TestCreateValid(t *testing.T) {
	h := newHarness(t, Options{}, nil)

	resp, data := h.do(t, "POST", "/widgets", `{"name":"gear","madeAt":"2024-03-01T10:00:00+02:00"}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(data))
	assert.Equal(t, fiber.MIMEApplicationJSON, resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"id":42,"name":"gear","madeAt":"2024-03-01T08:00:00.000Z"}`, string(data))
	assert.Equal(t, int32(1), h.calls.Load())
}

func TestCreateRejectsInvalidBodies(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		field      string
		constraint string
	}{
		{name: "null required field", body: `{"name":null}`, field: "name", constraint: "nullable"},
		{name: "missing required field", body: `{"madeAt":"2024-03-01T10:00:00Z"}`, field: "name", constraint: "required"},
		{name: "wrong type", body: `{"name":5}`, field: "name", constraint: "type"},
		{name: "bad date-time", body: `{"name":"gear","madeAt":"yesterday"}`, field: "madeAt", constraint: "format"},
		{name: "unknown property", body: `{"name":"gear","colour":"red"}`, field: "colour", constraint: "properties"},
		{name: "malformed json", body: `{"name":`, field: "", constraint: "json"},
		{name: "model constraint", body: `{"name":"far-too-long"}`, field: "name", constraint: "max"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{}, nil)

			resp, data := h.do(t, "POST", "/widgets", tt.body)
			require.Equal(t, fiber.StatusBadRequest, resp.StatusCode, string(data))

			body := errorBody(t, data)
			assert.Equal(t, apierror.CodeValidation, body.Error.Code)
			assert.Equal(t, tt.field, body.Error.Field)
			require.NotEmpty(t, body.Error.Details)
			assert.Equal(t, tt.constraint, body.Error.Details[0].Constraint)
			assert.NotEmpty(t, body.RequestID)
			assert.Equal(t, resp.Header.Get(middleware.RequestIDHeader), body.RequestID)
			assert.Zero(t, h.calls.Load(), "handler must not run for invalid input")
		})
	}
}

func TestCreateRequiresBody(t *testing.T) {
	h := newHarness(t, Options{}, nil)

	resp, data := h.do(t, "POST", "/widgets", "")
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body := errorBody(t, data)
	assert.Equal(t, "required", body.Error.Details[0].Constraint)
	assert.Zero(t, h.calls.Load())
}

func TestCreateRejectsNonJSONContentType(t *testing.T) {
	h := newHarness(t, Options{}, nil)

	req := httptest.NewRequest("POST", "/widgets", strings.NewReader(`name=gear`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := h.app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)
	assert.Zero(t, h.calls.Load())
}

func TestRouting(t *testing.T) {
	h := newHarness(t, Options{}, nil)

	t.Run("undeclared path", func(t *testing.T) {
		resp, data := h.do(t, "GET", "/gadgets", "")
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
		assert.Equal(t, apierror.CodeNotFound, errorBody(t, data).Error.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		resp, data := h.do(t, "PUT", "/widgets", `{"name":"gear"}`)
		assert.Equal(t, fiber.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, "GET, POST", resp.Header.Get("Allow"))
		assert.Equal(t, apierror.CodeMethodNotAllowed, errorBody(t, data).Error.Code)
	})

	t.Run("list", func(t *testing.T) {
		resp, data := h.do(t, "GET", "/widgets", "")
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `[{"id":1,"name":"one"}]`, string(data))
	})

	t.Run("no content", func(t *testing.T) {
		resp, data := h.do(t, "DELETE", "/widgets/3", "")
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
		assert.Empty(t, data)
	})
}

func TestParams(t *testing.T) {
	h := newHarness(t, Options{}, nil)

	t.Run("coerced path and query", func(t *testing.T) {
		resp, data := h.do(t, "GET", "/widgets/7?verbose=true", "")
		require.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))
		assert.JSONEq(t, `{"id":7,"name":"verbose"}`, string(data))
	})

	t.Run("non integer path", func(t *testing.T) {
		resp, data := h.do(t, "GET", "/widgets/abc", "")
		require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "id", errorBody(t, data).Error.Field)
	})

	t.Run("below minimum", func(t *testing.T) {
		resp, data := h.do(t, "GET", "/widgets/0", "")
		require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "id", errorBody(t, data).Error.Field)
	})

	t.Run("non boolean query", func(t *testing.T) {
		resp, data := h.do(t, "GET", "/widgets/7?verbose=maybe", "")
		require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "verbose", errorBody(t, data).Error.Field)
	})

	t.Run("integer beyond float precision", func(t *testing.T) {
		resp, data := h.do(t, "GET", "/widgets/9007199254740993", "")
		require.Equal(t, fiber.StatusOK, resp.StatusCode, string(data))
		assert.Contains(t, string(data), `"id":9007199254740993`)
	})

	t.Run("typed handler error passes through", func(t *testing.T) {
		resp, data := h.do(t, "GET", "/widgets/404", "")
		require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "widget not found", errorBody(t, data).Error.Message)
	})
}

func TestTimeout(t *testing.T) {
	cancelled := make(chan struct{})
	h := newHarness(t, Options{Timeout: 50 * time.Millisecond}, map[string]Binding{
		"listWidgets": Bind(func(ctx context.Context, req Request[None, None]) ([]widget, error) {
			<-ctx.Done()
			close(cancelled)
			return nil, ctx.Err()
		}),
	})

	resp, data := h.do(t, "GET", "/widgets", "")
	require.Equal(t, fiber.StatusGatewayTimeout, resp.StatusCode)
	assert.Equal(t, apierror.CodeTimeout, errorBody(t, data).Error.Code)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("handler context was not cancelled")
	}
}

func TestTimeoutIgnoringContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	h := newHarness(t, Options{Timeout: 50 * time.Millisecond}, map[string]Binding{
		"listWidgets": Bind(func(ctx context.Context, req Request[None, None]) ([]widget, error) {
			<-release
			return nil, nil
		}),
	})

	resp, _ := h.do(t, "GET", "/widgets", "")
	assert.Equal(t, fiber.StatusGatewayTimeout, resp.StatusCode)
}

func TestHandlerFailures(t *testing.T) {
	h := newHarness(t, Options{}, map[string]Binding{
		"listWidgets": Bind(func(ctx context.Context, req Request[None, None]) ([]widget, error) {
			panic("boom")
		}),
		"deleteWidget": Bind(func(ctx context.Context, req Request[widgetParams, None]) (None, error) {
			return None{}, errors.New("db password is hunter2")
		}),
	})

	t.Run("panic", func(t *testing.T) {
		resp, data := h.do(t, "GET", "/widgets", "")
		require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, apierror.CodeInternal, errorBody(t, data).Error.Code)
	})

	t.Run("untyped error hides cause", func(t *testing.T) {
		resp, data := h.do(t, "DELETE", "/widgets/1", "")
		require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
		assert.NotContains(t, string(data), "hunter2")
		assert.Equal(t, "internal server error", errorBody(t, data).Error.Message)
	})
}

func TestNilResults(t *testing.T) {
	h := newHarness(t, Options{}, map[string]Binding{
		"getWidget": Bind(func(ctx context.Context, req Request[widgetParams, None]) (*widget, error) {
			return nil, nil
		}),
		"listWidgets": Bind(func(ctx context.Context, req Request[None, None]) ([]widget, error) {
			return nil, nil
		}),
	})

	t.Run("nil pointer on a declared schema", func(t *testing.T) {
		resp, data := h.do(t, "GET", "/widgets/7", "")
		require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode, string(data))
		assert.Equal(t, apierror.CodeInternal, errorBody(t, data).Error.Code)
	})

	t.Run("nil slice is an empty list", func(t *testing.T) {
		resp, data := h.do(t, "GET", "/widgets", "")
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "[]", string(data))
	})
}

func TestNilResultWithoutSchema(t *testing.T) {
	h := newHarness(t, Options{}, map[string]Binding{
		"listWidgets": Bind(func(ctx context.Context, req Request[None, None]) (*widget, error) {
			return nil, nil
		}),
	})

	resp, data := h.do(t, "GET", "/widgets", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, data)
}

func TestConcurrentRequests(t *testing.T) {
	h := newHarness(t, Options{}, nil)

	const n = 40
	statuses := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := fmt.Sprintf(`{"name":"w%d"}`, i)
			if i%2 == 1 {
				body = `{"name":null}`
			}
			req := httptest.NewRequest("POST", "/widgets", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := h.app.Test(req, -1)
			if !assert.NoError(t, err) {
				return
			}
			defer resp.Body.Close()
			data, _ := io.ReadAll(resp.Body)
			statuses[i] = resp.StatusCode
			if i%2 == 0 {
				assert.JSONEq(t, fmt.Sprintf(`{"id":42,"name":"w%d"}`, i), string(data))
			}
		}(i)
	}
	wg.Wait()

	for i, status := range statuses {
		if i%2 == 0 {
			assert.Equal(t, fiber.StatusCreated, status, "request %d", i)
		} else {
			assert.Equal(t, fiber.StatusBadRequest, status, "request %d", i)
		}
	}
	assert.Equal(t, int32(n/2), h.calls.Load())
}

func TestValidateResponses(t *testing.T) {
	bad := map[string]Binding{
		"createWidget": Bind(func(ctx context.Context, req Request[None, widgetBody]) (widget, error) {
			return widget{Name: req.Body.Name}, nil
		}),
	}

	t.Run("mismatch is unhandled", func(t *testing.T) {
		h := newHarness(t, Options{ValidateResponses: true}, bad)
		resp, _ := h.do(t, "POST", "/widgets", `{"name":"gear"}`)
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	})

	t.Run("disabled", func(t *testing.T) {
		h := newHarness(t, Options{}, bad)
		resp, data := h.do(t, "POST", "/widgets", `{"name":"gear"}`)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
		assert.JSONEq(t, `{"name":"gear"}`, string(data))
	})

	t.Run("conforming", func(t *testing.T) {
		h := newHarness(t, Options{ValidateResponses: true}, nil)
		resp, _ := h.do(t, "POST", "/widgets", `{"name":"gear"}`)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	})
}

func TestRegister(t *testing.T) {
	a := New(newTable(t), Options{})
	noop := Bind(func(ctx context.Context, req Request[None, None]) (None, error) { return None{}, nil })

	assert.Error(t, a.Register("unknownOp", noop))

	require.NoError(t, a.Register("listWidgets", noop))
	assert.Error(t, a.Register("listWidgets", noop))

	assert.Equal(t, []string{"createWidget", "deleteWidget", "getWidget"}, a.Unbound())
	err := a.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "createWidget")
}

func TestErrorHandlerMapsRouterErrors(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(nil)})
	app.Get("/teapot", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusServiceUnavailable, "down")
	})
	app.Get("/plain", func(c *fiber.Ctx) error {
		return errors.New("secret")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/teapot", nil))
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, apierror.CodeUnavailable, errorBody(t, data).Error.Code)

	resp, err = app.Test(httptest.NewRequest("GET", "/plain", nil))
	require.NoError(t, err)
	data, _ = io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.NotContains(t, string(data), "secret")
}
