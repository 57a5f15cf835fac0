// Package errors provides examples of structured error handling in pitchline.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/pitchline/pkg/errors"
)

// Example demonstrates basic error creation and wrapping.
func Example() {
	err := errors.New(errors.ErrorTypeTransport, "unexpected status 503").
		WithDetail("url", "https://fantasy.premierleague.com/api/fixtures").
		WithDetail("request_id", "3f2a")

	fmt.Println(err.Error())

	// Output:
	// transport: unexpected status 503
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	originalErr := io.ErrUnexpectedEOF

	err := errors.Wrap(originalErr, errors.ErrorTypeSchema, "response body is not valid JSON").
		WithDetail("endpoint", "bootstrap-static")

	if errors.IsType(err, errors.ErrorTypeSchema) {
		fmt.Println("This is a schema error")
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("Original error was unexpected EOF")
	}

	// Output:
	// This is a schema error
	// Original error was unexpected EOF
}

// ExampleIsType demonstrates checking types through a wrapped chain.
func ExampleIsType() {
	inner := errors.New(errors.ErrorTypeIO, "parent directory does not exist")
	outer := errors.Wrap(inner, errors.ErrorTypeInternal, "table players failed")

	fmt.Println(errors.TypeOf(outer))
	fmt.Println(errors.IsType(outer, errors.ErrorTypeIO))
	fmt.Println(errors.IsType(outer, errors.ErrorTypeValue))

	// Output:
	// internal
	// true
	// false
}
