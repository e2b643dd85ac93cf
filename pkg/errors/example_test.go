package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/strata/pkg/errors"
)

// Example demonstrates basic error creation.
func Example() {
	err := errors.New(errors.ErrorTypeValidation, "head: n must be positive").
		WithDetail("op", "head").
		WithDetail("n", 0)

	fmt.Println(err.Error())

	// Output:
	// validation: head: n must be positive
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeFile, "failed to read lookup file").
		WithDetail("file", "lookup.csv")

	if errors.IsType(err, errors.ErrorTypeFile) {
		fmt.Println("This is a file error")
	}
	fmt.Println(err)

	// Output:
	// This is a file error
	// file: failed to read lookup file: unexpected EOF
}

// ExampleNewf shows formatted messages.
func ExampleNewf() {
	err := errors.Newf(errors.ErrorTypeConfig, "unknown op %q", "frobnicate")
	fmt.Println(err)
	fmt.Println(errors.TypeOf(err))

	// Output:
	// config: unknown op "frobnicate"
	// config
}

// Example_errorChain shows how to chain multiple error contexts.
func Example_errorChain() {
	err := buildStep()
	if err != nil {
		err = errors.Wrap(err, errors.ErrorTypeConfig, "step 2 (window)")
		fmt.Println("Full error chain:", err)
	}

	// Output:
	// Full error chain: config: step 2 (window): validation: size must be positive
}

func buildStep() error {
	return errors.New(errors.ErrorTypeValidation, "size must be positive")
}
