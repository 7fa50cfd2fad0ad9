// Copyright (c) 2023 The BitcoinUnlimited developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package subblock

import "fmt"

// ErrorCode identifies a kind of assembler error, mirroring the
// blockchain.RuleError/ErrorCode pattern used across this codebase.
type ErrorCode int

const (
	// ErrMempoolUnavailable indicates assembly was attempted against a
	// pre-genesis chain state or a missing tip; this is a precondition
	// failure, not a bug.
	ErrMempoolUnavailable ErrorCode = iota

	// ErrAssemblyFailed indicates the post-assembly validity self-check
	// (testSubBlockValidity) rejected the emitted template. This signals
	// a node-internal bug or a race with the mempool snapshot and is
	// always fatal to the current assembly attempt.
	ErrAssemblyFailed
)

var errorCodeStrings = map[ErrorCode]string{
	ErrMempoolUnavailable: "ErrMempoolUnavailable",
	ErrAssemblyFailed:     "ErrAssemblyFailed",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s, ok := errorCodeStrings[e]; ok {
		return s
	}
	return fmt.Sprintf("ErrorCode(%d)", int(e))
}

// AssemblyError identifies an error produced by the assembler driver (C7).
// Per spec.md §7 this is the only error kind the driver returns; candidate
// rejection (C3) and package overflow (C6) are local, non-error control
// flow.
type AssemblyError struct {
	ErrorCode   ErrorCode
	Description string
}

// Error satisfies the error interface.
func (e AssemblyError) Error() string {
	return e.Description
}

func assemblyErrorf(code ErrorCode, format string, args ...interface{}) AssemblyError {
	return AssemblyError{ErrorCode: code, Description: fmt.Sprintf(format, args...)}
}
