package adapter

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/goccy/go-json"

	"contractapi/internal/apierror"
	"contractapi/internal/codec"
)

// None is the parameter, body or result type of operations that have none.
type None struct{}

// Request is the decoded, validated input of one operation call.
type Request[P, B any] struct {
	Params P
	Body   B
}

// HandlerFunc is the typed entry point of one operation. P holds the path
// and query parameters (json tags match the parameter names), B the request
// body and R the success payload.
type HandlerFunc[P, B, R any] func(ctx context.Context, req Request[P, B]) (R, error)

// Binding is a type-erased operation handler created by Bind.
type Binding interface {
	call(ctx context.Context, v *validator, in input) (any, error)
}

type input struct {
	params map[string]any
	body   []byte
}

type binding[P, B, R any] struct {
	h HandlerFunc[P, B, R]
}

// Bind wraps a typed handler so it can be registered for an operationId.
func Bind[P, B, R any](h HandlerFunc[P, B, R]) Binding {
	return binding[P, B, R]{h: h}
}

func (b binding[P, B, R]) call(ctx context.Context, v *validator, in input) (any, error) {
	var req Request[P, B]

	if len(in.params) > 0 {
		if err := decodeParams(in.params, &req.Params); err != nil {
			return nil, err
		}
	}
	if err := v.check(&req.Params); err != nil {
		return nil, err
	}

	if in.body != nil {
		if err := decodeBody(in.body, &req.Body); err != nil {
			return nil, err
		}
		if err := v.check(&req.Body); err != nil {
			return nil, err
		}
	}

	return b.h(ctx, req)
}

func decodeParams(params map[string]any, dst any) error {
	if _, ok := dst.(*None); ok {
		return nil
	}
	data, err := codec.Marshal(params)
	if err != nil {
		return apierror.Unhandled(fmt.Errorf("encode params: %w", err))
	}
	if err := codec.Unmarshal(data, dst); err != nil {
		return decodeError(err)
	}
	return nil
}

func decodeBody(body []byte, dst any) error {
	if _, ok := dst.(*None); ok {
		return nil
	}
	if err := codec.DecodeStrict(body, dst); err != nil {
		return decodeError(err)
	}
	return nil
}

// decodeError maps typed-decoding failures to validation errors. The raw
// value already passed schema validation, so these only fire when a model
// is stricter than the contract.
func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return apierror.Validation(typeErr.Field, "type", fmt.Sprintf("value must be %s", typeErr.Type))
	}
	return apierror.Validation("", "decode", err.Error())
}

func isNone(v any) bool {
	if v == nil {
		return true
	}
	return reflect.TypeOf(v) == reflect.TypeOf(None{})
}

// nilKind returns the kind of v when it is a nil pointer, map, slice or
// interface, and reflect.Invalid otherwise.
func nilKind(v any) reflect.Kind {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		if rv.IsNil() {
			return rv.Kind()
		}
	}
	return reflect.Invalid
}
