// Package fetch brings bytes to the pipeline: local files, web pages, and
// repository archives. Fetchers enforce the boundary guards (containment,
// SSRF, size caps) and return either bytes or a guard code; they never
// inspect content.
package fetch

import "fmt"

// GuardError is a refusal with a reason code. The caller turns it into a
// BLOCK GuardResult; it is policy, not an I/O failure.
type GuardError struct {
	Code string
	Err  error
}

func (e *GuardError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch: %s: %v", e.Code, e.Err)
	}
	return "fetch: " + e.Code
}

func (e *GuardError) Unwrap() error { return e.Err }

func guard(code string, err error) *GuardError {
	return &GuardError{Code: code, Err: err}
}

// BadInputError marks malformed caller input: the request is rejected at
// the RPC layer and the pipeline never runs. Code, when set, is the reason
// code surfaced in the tool error.
type BadInputError struct {
	Code string
	Msg  string
}

func (e *BadInputError) Error() string {
	if e.Code != "" {
		return "fetch: " + e.Code + ": " + e.Msg
	}
	return "fetch: " + e.Msg
}

func badInput(format string, args ...any) *BadInputError {
	return &BadInputError{Msg: fmt.Sprintf(format, args...)}
}

func badInputCode(code, format string, args ...any) *BadInputError {
	return &BadInputError{Code: code, Msg: fmt.Sprintf(format, args...)}
}
