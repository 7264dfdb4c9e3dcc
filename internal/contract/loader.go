// Package contract turns the service's OpenAPI document into the runtime
// route table the HTTP adapter dispatches on, and validates request and
// response values against the document's schemas.
//
// The document is an external collaborator: it may be embedded in the
// binary, read from disk, or fetched from S3-compatible object storage.
package contract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"contractapi/api"
)

// SourceEmbedded selects the contract compiled into the binary.
const SourceEmbedded = "embedded"

const s3Scheme = "s3://"

// ErrEmptyDocument is returned when a source yields no bytes.
var ErrEmptyDocument = errors.New("contract document is empty")

// ObjectFetcher reads an object from S3-compatible storage.
type ObjectFetcher interface {
	Fetch(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// Loader reads and validates an OpenAPI document from a source string:
//
//	""/"embedded"        the embedded api/openapi.yaml
//	s3://bucket/key      an object fetched through Objects
//	anything else        a local file path
type Loader struct {
	Objects ObjectFetcher
}

// Load reads the document named by source and validates it.
func (l Loader) Load(ctx context.Context, source string) (*openapi3.T, error) {
	data, err := l.Read(ctx, source)
	if err != nil {
		return nil, err
	}
	return Parse(ctx, data)
}

// Parse parses and validates an OpenAPI document in YAML or JSON.
func Parse(ctx context.Context, data []byte) (*openapi3.T, error) {
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false

	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("parse contract: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid contract: %w", err)
	}
	return doc, nil
}

// Read returns the raw document bytes named by source without parsing them.
func (l Loader) Read(ctx context.Context, source string) ([]byte, error) {
	switch {
	case source == "" || source == SourceEmbedded:
		return api.OpenAPISpec, nil
	case strings.HasPrefix(source, s3Scheme):
		bucket, key, ok := strings.Cut(strings.TrimPrefix(source, s3Scheme), "/")
		if !ok || bucket == "" || key == "" {
			return nil, fmt.Errorf("invalid contract source %q: want s3://bucket/key", source)
		}
		if l.Objects == nil {
			return nil, fmt.Errorf("contract source %q needs object storage, none configured", source)
		}
		rc, err := l.Objects.Fetch(ctx, bucket, key)
		if err != nil {
			return nil, fmt.Errorf("fetch contract: %w", err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read contract: %w", err)
		}
		return data, nil
	default:
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("read contract: %w", err)
		}
		return data, nil
	}
}
