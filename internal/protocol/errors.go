package protocol

import (
	"fmt"
	"strings"
)

// Severity is the server-reported level of a single error entry.
type Severity int8

const (
	SeverityWarning    Severity = 0
	SeverityError      Severity = 1
	SeverityFatalError Severity = 2
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatalError:
		return "fatal error"
	default:
		return fmt.Sprintf("severity(%d)", s)
	}
}

const sqlStateSize = 5

// ServerError is a single error or warning entry returned by the server.
type ServerError struct {
	Code     int32
	Position int32
	Severity Severity
	SQLState string
	Message  string
	StmtNo   int
}

func (e *ServerError) Error() string {
	if e.StmtNo > 0 {
		return fmt.Sprintf("SQL %s %d - %s (statement no: %d)", e.Severity, e.Code, e.Message, e.StmtNo)
	}
	return fmt.Sprintf("SQL %s %d - %s", e.Severity, e.Code, e.Message)
}

func (e *ServerError) String() string { return e.Error() }

// IsWarning reports whether e is a non-fatal warning.
func (e *ServerError) IsWarning() bool { return e.Severity == SeverityWarning }

// Kind returns the PartKind of an Error part.
func (*HdbErrors) Kind() PartKind { return PkError }

// HdbErrors is the Error part payload: a list of ServerError entries, some
// of which may be warnings.
type HdbErrors struct {
	Errs []*ServerError
}

// DecodeNumArg parses numArg ServerError entries.
func (e *HdbErrors) DecodeNumArg(dec *Decoder, ph *PartHeader, numArg int) error {
	e.Errs = make([]*ServerError, numArg)
	for i := 0; i < numArg; i++ {
		se := &ServerError{}
		se.Code = dec.Int32()
		se.Position = dec.Int32()
		textLen := dec.Int32()
		se.Severity = Severity(dec.Int8())
		sqlState := make([]byte, sqlStateSize)
		dec.Bytes(sqlState)
		se.SQLState = string(sqlState)

		msg := make([]byte, int(textLen))
		dec.Bytes(msg)
		se.Message = string(msg)

		if numArg == 1 {
			// A lone error's buffer length is one byte longer than its
			// decoded content (observed inconsistency, see §9); consume it
			// rather than let it desync the next part.
			dec.Skip(1)
		} else {
			pad := PadLen(2 + int(textLen)) // fixLength(2) + text
			dec.Skip(pad)
		}
		e.Errs[i] = se
	}
	return dec.Error()
}

func (e *HdbErrors) String() string {
	strs := make([]string, len(e.Errs))
	for i, se := range e.Errs {
		strs[i] = se.String()
	}
	return strings.Join(strs, "; ")
}

// Warnings returns the subset of Errs with Warning severity.
func (e *HdbErrors) Warnings() []*ServerError {
	var out []*ServerError
	for _, se := range e.Errs {
		if se.IsWarning() {
			out = append(out, se)
		}
	}
	return out
}

// Failures returns the subset of Errs that are not warnings.
func (e *HdbErrors) Failures() []*ServerError {
	var out []*ServerError
	for _, se := range e.Errs {
		if !se.IsWarning() {
			out = append(out, se)
		}
	}
	return out
}

// ExecResult is the per-row outcome of a batched execute.
type ExecResult struct {
	RowsAffected int64  // >=0: Success(rowcount); -1: SuccessNoInfo
	Failure      *ServerError
}

// Success reports whether this row succeeded.
func (r ExecResult) Success() bool { return r.Failure == nil }

// ClassifyResult is the error classifier (C10): it partitions a reply's
// error list into warnings (appended to the caller-supplied warnings sink)
// and failures, then, if per-row exec results are present, correlates each
// Failure placeholder with one failure from the error list in order. It
// returns:
//   - nil if there were no non-warning errors
//   - an *ExecutionResultsError if execResults is non-nil (batched path)
//   - the single *ServerError if exactly one remains (direct path)
//   - an *ImplError if more than one remains outside a batch (should not
//     happen; surfaced rather than panicking per §9's note on unreachable
//     branches)
func ClassifyResult(errs *HdbErrors, execResults []ExecResult, addWarning func(*ServerError)) (mergedExecResults []ExecResult, err error) {
	var failures []*ServerError
	if errs != nil {
		for _, se := range errs.Errs {
			if se.IsWarning() {
				addWarning(se)
			} else {
				failures = append(failures, se)
			}
		}
	}

	if execResults != nil {
		i := 0
		for idx, r := range execResults {
			if r.Failure != nil && r.Failure.Code == 0 { // placeholder marker
				if i < len(failures) {
					execResults[idx].Failure = failures[i]
					i++
				}
			}
		}
		for ; i < len(failures); i++ {
			execResults = append(execResults, ExecResult{Failure: failures[i]})
		}
		hasFailure := false
		for _, r := range execResults {
			if !r.Success() {
				hasFailure = true
				break
			}
		}
		if hasFailure {
			return execResults, &ExecutionResultsError{Results: execResults}
		}
		return execResults, nil
	}

	switch len(failures) {
	case 0:
		return nil, nil
	case 1:
		return nil, failures[0]
	default:
		return nil, &ImplError{Msg: fmt.Sprintf("%d server errors without a correlating execution result list", len(failures))}
	}
}

// ExecutionResultsError reports per-row failures within a batched execute.
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
	return fmt.Sprintf("execution results: %d of %d rows failed", n, len(e.Results))
}

// ImplError signals a broken internal invariant rather than panicking.
type ImplError struct{ Msg string }

func (e *ImplError) Error() string { return "internal error: " + e.Msg }
