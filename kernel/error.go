// Package kernel contains the types and helpers shared by every kernel
// package.
package kernel

// Error describes a kernel error. Kernel errors are declared as package-level
// pointers to Error and compared by identity; the code paths that return them
// run before (or entirely without) a Go heap so errors.New is not an option.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}
