// Package adapter is the API surface adapter: it dispatches HTTP requests
// to typed operation handlers through the route table compiled from the
// OpenAPI contract.
//
// Each request is resolved, decoded and validated before its handler runs.
// An invalid request never reaches business logic. Handlers run under a
// per-request deadline and their results are encoded with the service codec.
// The adapter keeps no per-request state and is safe for concurrent use once
// every operation is bound.
package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"contractapi/internal/apierror"
	"contractapi/internal/codec"
	"contractapi/internal/contract"
	"contractapi/internal/http/middleware"
)

// DefaultTimeout bounds a handler call when Options.Timeout is unset.
const DefaultTimeout = 10 * time.Second

// Options configures an Adapter.
type Options struct {
	// Timeout is the per-request handler deadline.
	Timeout time.Duration
	// ValidateResponses checks every success body against the contract.
	ValidateResponses bool
	Logger            *zap.Logger
}

// Adapter binds contract operations to handlers.
type Adapter struct {
	table    *contract.Table
	bindings map[string]Binding
	opts     Options
	log      *zap.Logger
	validate *validator
}

// New creates an Adapter over table. Operations are bound with Register.
func New(table *contract.Table, opts Options) *Adapter {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{
		table:    table,
		bindings: make(map[string]Binding),
		opts:     opts,
		log:      log,
		validate: newValidator(),
	}
}

// Table returns the route table the adapter dispatches on.
func (a *Adapter) Table() *contract.Table {
	return a.table
}

// Register binds b to the operation with the given operationId.
func (a *Adapter) Register(operationID string, b Binding) error {
	if _, ok := a.table.Operation(operationID); !ok {
		return fmt.Errorf("operation %q is not declared in the contract", operationID)
	}
	if _, dup := a.bindings[operationID]; dup {
		return fmt.Errorf("operation %q is already bound", operationID)
	}
	a.bindings[operationID] = b
	return nil
}

// Unbound lists declared operations that have no handler, sorted.
func (a *Adapter) Unbound() []string {
	var out []string
	for _, op := range a.table.Operations() {
		if _, ok := a.bindings[op.ID]; !ok {
			out = append(out, op.ID)
		}
	}
	sort.Strings(out)
	return out
}

// Verify fails when any declared operation is unbound.
func (a *Adapter) Verify() error {
	if missing := a.Unbound(); len(missing) > 0 {
		return fmt.Errorf("operations without handlers: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Handler returns the dispatching fiber handler. Mount it after every
// out-of-contract route: anything reaching it is resolved solely against
// the route table.
func (a *Adapter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Path parameters reach the handler goroutine, which may outlive
		// fasthttp's request buffer on timeout.
		op, pathParams, err := a.table.Resolve(utils.CopyString(c.Method()), utils.CopyString(c.Path()))
		if err != nil {
			var ae *apierror.Error
			if errors.As(err, &ae) && len(ae.Allow) > 0 {
				c.Set(fiber.HeaderAllow, strings.Join(ae.Allow, ", "))
			}
			return err
		}
		c.Locals(middleware.RouteLocalKey, op.Path)
		c.Locals(middleware.OperationLocalKey, op.ID)
		return a.serve(c, op, pathParams)
	}
}

func (a *Adapter) serve(c *fiber.Ctx, op *contract.Operation, pathParams map[string]string) error {
	b, ok := a.bindings[op.ID]
	if !ok {
		return apierror.Unhandled(fmt.Errorf("operation %s has no handler", op.ID))
	}

	params, err := op.DecodeParams(pathParams, queryValues(c))
	if err != nil {
		return err
	}

	var body []byte
	if op.HasBody() {
		if body, err = readBody(c, op); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), a.opts.Timeout)
	defer cancel()

	result, err := a.invoke(ctx, op, b, input{params: params, body: body})
	if err != nil {
		return err
	}
	return a.respond(c, op, result)
}

// invoke runs the handler in its own goroutine so the deadline can complete
// the request even when the handler ignores its context. The handler's
// result channel is buffered, so a late handler never blocks.
func (a *Adapter) invoke(ctx context.Context, op *contract.Operation, b Binding, in input) (any, error) {
	type outcome struct {
		v   any
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: apierror.Unhandled(fmt.Errorf("panic in %s: %v", op.ID, r))}
			}
		}()
		v, err := b.call(ctx, a.validate, in)
		done <- outcome{v: v, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, classify(out.err)
		}
		return out.v, nil
	case <-ctx.Done():
		return nil, classify(ctx.Err())
	}
}

func classify(err error) error {
	var ae *apierror.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apierror.Timeout(err)
	}
	return apierror.Unhandled(err)
}

func (a *Adapter) respond(c *fiber.Ctx, op *contract.Operation, result any) error {
	status := op.SuccessStatus
	if status == http.StatusNoContent || isNone(result) {
		return c.SendStatus(status)
	}

	var data []byte
	switch kind := nilKind(result); kind {
	case reflect.Invalid:
		var err error
		if data, err = codec.Marshal(result); err != nil {
			return apierror.Unhandled(fmt.Errorf("encode %s response: %w", op.ID, err))
		}
	case reflect.Slice:
		data = []byte("[]")
	default:
		if op.ResponseSchema(status) != nil {
			return apierror.Unhandled(fmt.Errorf("%s returned a nil %s with no error", op.ID, kind))
		}
		return c.SendStatus(status)
	}

	if a.opts.ValidateResponses {
		var decoded any
		if err := codec.Unmarshal(data, &decoded); err != nil {
			return apierror.Unhandled(fmt.Errorf("decode %s response: %w", op.ID, err))
		}
		if err := op.ValidateResponse(status, decoded); err != nil {
			a.log.Error("response violates contract",
				zap.String("operation", op.ID),
				zap.Int("status", status),
				zap.Error(err),
			)
			return apierror.Unhandled(err)
		}
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(status).Send(data)
}

func readBody(c *fiber.Ctx, op *contract.Operation) ([]byte, error) {
	raw := c.Body()
	if len(bytes.TrimSpace(raw)) == 0 {
		if op.BodyRequired {
			return nil, apierror.Validation("", "required", "request body is required")
		}
		return nil, nil
	}

	if ct := c.Get(fiber.HeaderContentType); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || (mt != fiber.MIMEApplicationJSON && !strings.HasSuffix(mt, "+json")) {
			return nil, apierror.FromStatus(http.StatusUnsupportedMediaType, err)
		}
	}

	var value any
	if err := codec.Unmarshal(raw, &value); err != nil {
		return nil, apierror.Validation("", "json", "request body is not valid JSON")
	}
	if err := op.ValidateBody(value); err != nil {
		return nil, err
	}

	// fiber reuses the request buffer once the handler returns; the
	// operation handler may outlive it on timeout.
	return bytes.Clone(raw), nil
}

func queryValues(c *fiber.Ctx) url.Values {
	q := url.Values{}
	c.Context().QueryArgs().VisitAll(func(k, v []byte) {
		q.Add(string(k), string(v))
	})
	return q
}
