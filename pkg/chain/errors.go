// Package chain reads TON contract state through an ordered list of
// read-only endpoints with sequential failover.
package chain

import "errors"

var (
	// ErrNoEndpoints indicates an executor without endpoints.
	ErrNoEndpoints = errors.New("at least one chain endpoint is required")
	// ErrInvalidStack indicates a get method result of unexpected shape.
	ErrInvalidStack = errors.New("invalid stack")
	// ErrMethodFailed indicates a get method that returned a non-zero exit code.
	ErrMethodFailed = errors.New("get method failed")
	// ErrRequestFailed indicates an endpoint that answered with an error.
	ErrRequestFailed = errors.New("endpoint request failed")
	// ErrUnknownEndpointType indicates an endpoint type with no caller implementation.
	ErrUnknownEndpointType = errors.New("unknown endpoint type")
)
