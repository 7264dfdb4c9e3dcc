// Package model holds the data-transfer shapes of the API contract. Models
// are plain data: json tags follow the contract's property names and
// validate tags carry the same constraints the schema declares.
//
// Optional properties are pointers tagged omitempty, so an unset optional
// field is never emitted as null.
package model

import "contractapi/internal/codec"

// HelloResponse is the body of the hello operations.
type HelloResponse struct {
	Message string `json:"message" validate:"required"`
}

// HelloParams are the parameters of getHelloByName.
type HelloParams struct {
	Name  string `json:"name" validate:"required,min=1,max=64"`
	Shout *bool  `json:"shout,omitempty"`
}

// GreetingRequest is the body of createGreeting.
type GreetingRequest struct {
	Name        string          `json:"name" validate:"required,min=1,max=64"`
	Locale      *string         `json:"locale,omitempty" validate:"omitempty,bcp47_language_tag"`
	RequestedAt *codec.DateTime `json:"requestedAt,omitempty"`
}

// GreetingResponse is returned by createGreeting.
type GreetingResponse struct {
	ID          string          `json:"id"`
	Message     string          `json:"message"`
	Locale      string          `json:"locale"`
	GreetedAt   codec.DateTime  `json:"greetedAt"`
	RequestedAt *codec.DateTime `json:"requestedAt,omitempty"`
}
