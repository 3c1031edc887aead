package hdb

import (
	"fmt"

	"github.com/hdbnative/hdb/internal/protocol"
)

// ConnParamsError reports a malformed or incomplete DSN/ConnectParams.
type ConnParamsError struct{ Msg string }

func (e *ConnParamsError) Error() string { return "hdb: connect params: " + e.Msg }

// TransportError wraps a failure opening or using the byte stream (dial,
// TLS handshake, read/write I/O error).
type TransportError struct{ Err error }

func (e *TransportError) Error() string { return fmt.Sprintf("hdb: transport: %s", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// AuthenticationError wraps a failure during the SCRAM handshake,
// including a server-proof mismatch.
type AuthenticationError struct{ Err error }

func (e *AuthenticationError) Error() string { return fmt.Sprintf("hdb: authentication: %s", e.Err) }
func (e *AuthenticationError) Unwrap() error  { return e.Err }

// DBError wraps a single server-reported error (*protocol.ServerError).
type DBError struct{ *protocol.ServerError }

func (e *DBError) Error() string { return "hdb: " + e.ServerError.Error() }
func (e *DBError) Unwrap() error { return e.ServerError }

// ExecutionResultsError reports per-row failures within a batched execute;
// Results is positionally aligned with the submitted batch.
type ExecutionResultsError struct {
	Results []ExecResult
}

func (e *ExecutionResultsError) Error() string {
	n := 0
	for _, r := range e.Results {
		if !r.Success() {
			n++
		}
	}
	return fmt.Sprintf("hdb: execution results: %d of %d rows failed", n, len(e.Results))
}

// DeserializationError wraps a failure decoding a field value off the wire.
type DeserializationError struct{ Err error }

func (e *DeserializationError) Error() string { return fmt.Sprintf("hdb: deserialization: %s", e.Err) }
func (e *DeserializationError) Unwrap() error  { return e.Err }

// SerializationError wraps a failure encoding a bound parameter value.
type SerializationError struct{ Err error }

func (e *SerializationError) Error() string { return fmt.Sprintf("hdb: serialization: %s", e.Err) }
func (e *SerializationError) Unwrap() error  { return e.Err }

// LobStreamingError wraps a failure in the LOB read or write streaming
// path: a locator mismatch, a reader/writer I/O error, or a CESU-8
// boundary violation on a character LOB.
type LobStreamingError struct{ Msg string }

func (e *LobStreamingError) Error() string { return "hdb: lob streaming: " + e.Msg }

// SessionClosingTransactionError reports that the server force-closed the
// session because disconnecting would have left an open write transaction
// with no way to resolve it.
type SessionClosingTransactionError struct{}

func (e *SessionClosingTransactionError) Error() string {
	return "hdb: session closed with an open write transaction"
}

// PoisonError is returned by any operation on a Session or PreparedStatement
// after a round-trip failed in a way that leaves the wire state
// unrecoverable (e.g. a partial write). The caller must Close and
// reconnect.
type PoisonError struct{ Cause error }

func (e *PoisonError) Error() string { return fmt.Sprintf("hdb: session poisoned: %s", e.Cause) }
func (e *PoisonError) Unwrap() error  { return e.Cause }

// UsageError reports a local misuse of the API (batch/LOB reader count
// mismatch, operation on a closed statement, binding the wrong value kind
// to a LOB parameter) rather than anything the server reported.
type UsageError struct{ Msg string }

func (e *UsageError) Error() string { return "hdb: usage: " + e.Msg }

// ImplError signals a broken internal invariant surfaced as an error
// rather than a panic, per the non-PBKDF2 error-triage fallback.
type ImplError struct{ Msg string }

func (e *ImplError) Error() string { return "hdb: internal error: " + e.Msg }
