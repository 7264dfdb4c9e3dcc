package contract

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"

	"contractapi/internal/apierror"
)

// DecodeParams collects the operation's path and query parameters,
// validates each against its declaration and returns them keyed by name as
// JSON-compatible values. Integers stay int64 so large ids survive the trip
// to the typed handler. Optional parameters that are absent are left out.
func (o *Operation) DecodeParams(path map[string]string, query url.Values) (map[string]any, error) {
	if query == nil {
		query = url.Values{}
	}
	in := &openapi3filter.RequestValidationInput{
		PathParams:  path,
		QueryParams: query,
		Options:     &openapi3filter.Options{MultiError: true, SkipSettingDefaults: true},
	}

	out := make(map[string]any, len(o.Params))
	var vs []apierror.Violation

	for _, p := range o.Params {
		var raw []string
		switch p.In {
		case InPath:
			if v, ok := path[p.Name]; ok {
				raw = []string{v}
			}
		case InQuery:
			raw = query[p.Name]
		}

		if len(raw) == 0 {
			if p.Required {
				vs = append(vs, apierror.Violation{
					Field:      p.Name,
					Constraint: "required",
					Message:    fmt.Sprintf("%s parameter %q is required", p.In, p.Name),
				})
			}
			continue
		}

		switch {
		case p.spec != nil && p.Schema != nil && p.Schema.Type != "":
			if err := openapi3filter.ValidateParameter(context.Background(), in, p.spec); err != nil {
				vs = paramViolations(err, p, raw, vs)
				continue
			}
		case p.Schema != nil:
			// untyped schemas take the raw string
			if err := p.Schema.VisitJSON(raw[0], openapi3.MultiErrors()); err != nil {
				vs = collect(err, p.Name, vs)
				continue
			}
		}

		v, err := coerce(p, raw)
		if err != nil {
			vs = append(vs, apierror.Violation{Field: p.Name, Constraint: "type", Message: err.Error()})
			continue
		}
		out[p.Name] = v
	}

	if len(vs) > 0 {
		return nil, apierror.ValidationOf(vs)
	}
	return out, nil
}

func paramViolations(err error, p Param, raw []string, out []apierror.Violation) []apierror.Violation {
	var re *openapi3filter.RequestError
	if !errors.As(err, &re) {
		return append(out, apierror.Violation{Field: p.Name, Constraint: "schema", Message: err.Error()})
	}

	var pe *openapi3filter.ParseError
	switch {
	case errors.Is(re.Err, openapi3filter.ErrInvalidRequired):
		return append(out, apierror.Violation{
			Field:      p.Name,
			Constraint: "required",
			Message:    fmt.Sprintf("%s parameter %q is required", p.In, p.Name),
		})
	case errors.Is(re.Err, openapi3filter.ErrInvalidEmptyValue):
		return append(out, apierror.Violation{
			Field:      p.Name,
			Constraint: "empty",
			Message:    fmt.Sprintf("%s parameter %q must not be empty", p.In, p.Name),
		})
	case errors.As(re.Err, &pe):
		return append(out, apierror.Violation{
			Field:      p.Name,
			Constraint: "type",
			Message:    fmt.Sprintf("value %q must be %s", strings.Join(raw, ","), typeName(p.Schema)),
		})
	default:
		return collect(re.Err, p.Name, out)
	}
}

// ValidateBody validates a decoded JSON request body against the declared
// schema, collecting every violation.
func (o *Operation) ValidateBody(value any) error {
	if o.Body == nil {
		return nil
	}
	if err := o.Body.VisitJSON(value, openapi3.MultiErrors(), openapi3.VisitAsRequest()); err != nil {
		return apierror.ValidationOf(collect(err, "", nil))
	}
	return nil
}

// ValidateResponse checks a decoded response body against the schema
// declared for status. Statuses without a JSON schema always pass.
func (o *Operation) ValidateResponse(status int, value any) error {
	schema := o.ResponseSchema(status)
	if schema == nil {
		return nil
	}
	if err := schema.VisitJSON(value, openapi3.MultiErrors(), openapi3.VisitAsResponse()); err != nil {
		vs := collect(err, "", nil)
		return fmt.Errorf("%s: response %d does not match contract: %s", o.ID, status, vs[0].Message)
	}
	return nil
}

// coerce converts validated raw values to their schema type. It mirrors the
// simple and form styles the validator accepted.
func coerce(p Param, raw []string) (any, error) {
	schema := p.Schema
	if schema == nil || schema.Type != openapi3.TypeArray {
		return primitive(schema, raw[0])
	}

	var items *openapi3.Schema
	if schema.Items != nil {
		items = schema.Items.Value
	}
	values := raw
	if p.In == InPath || (p.spec != nil && p.spec.Explode != nil && !*p.spec.Explode) {
		values = strings.Split(raw[0], ",")
	}
	out := make([]any, 0, len(values))
	for _, r := range values {
		v, err := primitive(items, r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func primitive(schema *openapi3.Schema, raw string) (any, error) {
	if schema == nil {
		return raw, nil
	}
	switch schema.Type {
	case openapi3.TypeInteger:
		n, err := strconv.ParseInt(raw, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("value %q must be an integer", raw)
		}
		return n, nil
	case openapi3.TypeNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("value %q must be a number", raw)
		}
		return f, nil
	case openapi3.TypeBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("value %q must be a boolean", raw)
		}
		return b, nil
	default:
		return raw, nil
	}
}

func typeName(schema *openapi3.Schema) string {
	if schema == nil {
		return "a string"
	}
	switch schema.Type {
	case openapi3.TypeInteger:
		return "an integer"
	case openapi3.TypeArray:
		return "a list"
	case "":
		return "a value"
	default:
		return "a " + schema.Type
	}
}

// collect flattens kin-openapi schema errors into violations whose field is
// the dotted path of the offending value below prefix.
func collect(err error, prefix string, out []apierror.Violation) []apierror.Violation {
	switch e := err.(type) {
	case openapi3.MultiError:
		for _, inner := range e {
			out = collect(inner, prefix, out)
		}
		return out
	case *openapi3.SchemaError:
		msg := e.Reason
		if msg == "" {
			msg = e.Error()
		}
		constraint := e.SchemaField
		if constraint == "" {
			constraint = "schema"
		}
		pointer := e.JSONPointer()
		if len(pointer) == 0 && constraint == "properties" {
			// unsupported properties are reported on the parent object
			if name, ok := quoted(msg); ok {
				pointer = []string{name}
			}
		}
		return append(out, apierror.Violation{
			Field:      fieldPath(prefix, pointer),
			Constraint: constraint,
			Message:    msg,
		})
	default:
		return append(out, apierror.Violation{Field: prefix, Constraint: "schema", Message: err.Error()})
	}
}

func fieldPath(prefix string, pointer []string) string {
	parts := make([]string, 0, len(pointer)+1)
	if prefix != "" {
		parts = append(parts, prefix)
	}
	parts = append(parts, pointer...)
	return strings.Join(parts, ".")
}

func quoted(s string) (string, bool) {
	start := strings.IndexByte(s, '"')
	if start < 0 {
		return "", false
	}
	end := strings.IndexByte(s[start+1:], '"')
	if end < 0 {
		return "", false
	}
	return s[start+1 : start+1+end], true
}
