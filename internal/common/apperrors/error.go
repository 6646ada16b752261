// Package apperrors provides the error handling system shared by the session
// server and its benchmark clients. It implements the standard error interface
// while adding error chaining, message customization, and a protocol status
// that tells callers how a failure should be reported on the wire.
package apperrors

// Error defines the interface for application errors. It extends the standard
// error interface with methods for error wrapping, message manipulation, and
// protocol status management. All methods return Error to support method chaining.
type Error interface {
	error
	Unwrap() error // support for errors.Is / errors.As

	// Extended methods
	New(msg string) Error                  // creates a new error using current as template
	Msg(msg string) Error                  // creates a new error with message and wraps original
	MsgErr(msg string, err ...error) Error // creates error with message and wraps extra errors
	Err(err ...error) Error                // attaches additional errors to current error
	SetExpandError(bool) Error             // controls whether ErrorAll expands wrapped errors
	SetStatus(string) Error                // sets the protocol status for the error
	Status() string                        // returns the current protocol status
	ErrorAll() string                      // returns full message including wrapped errors
	UnwrapAll() []error                    // returns all wrapped errors
}
