// Package docs registers the served OpenAPI contract with swag so the
// Swagger UI at /swagger/* renders whichever document the service loaded.
package docs

import (
	"sync/atomic"

	"github.com/swaggo/swag"
)

// Contract is the document read by the Swagger UI handler.
var Contract = &contractDoc{}

type contractDoc struct {
	doc atomic.Value
}

// Set replaces the served document with its JSON encoding.
func (d *contractDoc) Set(data []byte) {
	d.doc.Store(string(data))
}

// ReadDoc implements swag.Swagger.
func (d *contractDoc) ReadDoc() string {
	s, _ := d.doc.Load().(string)
	if s == "" {
		return "{}"
	}
	return s
}

func init() {
	swag.Register(swag.Name, Contract)
}
