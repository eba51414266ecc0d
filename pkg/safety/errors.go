package safety

import "fmt"

// Check identifiers carried by rejection errors, used for audit logging.
const (
	CheckStatementKind  = "statement_kind"
	CheckDeniedKeyword  = "denied_keyword"
	CheckTableAllowList = "table_allow_list"
	CheckFuncAllowList  = "function_allow_list"
	CheckDocumentKeys   = "document_keys"
	CheckResultBounds   = "result_bounds"
)

// UnsafeQueryError is returned when a generated query fails validation.
// The Reason is for server-side logs only; clients receive a generic
// security message.
type UnsafeQueryError struct {
	Check  string
	Reason string
}

func (e *UnsafeQueryError) Error() string {
	return fmt.Sprintf("unsafe query (%s): %s", e.Check, e.Reason)
}

func reject(check, format string, args ...any) *UnsafeQueryError {
	return &UnsafeQueryError{
		Check:  check,
		Reason: fmt.Sprintf(format, args...),
	}
}
