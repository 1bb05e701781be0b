package errors

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

// Kind classifies an ingest failure and decides how far it propagates.
type Kind string

const (
	// KindExtraction means a page or item could not be parsed. The page/item
	// is skipped and the run continues.
	KindExtraction = Kind("extraction")
	// KindIdentity means the required natural key was missing or blank. The
	// item is skipped with no rows written.
	KindIdentity = Kind("identity")
	// KindPersistence means a write failed. Any partial write for the item is
	// rolled back and the run continues.
	KindPersistence = Kind("persistence")
	// KindFatalEngine means the fetch engine itself is unreachable. The run
	// aborts immediately; previously committed items remain valid.
	KindFatalEngine = Kind("fatal_engine")
)

// IngestError is a classified failure raised while processing a term, page or
// item. Only KindFatalEngine escalates beyond the item/page it occurred in.
type IngestError struct {
	Kind    Kind
	Term    string
	Page    int
	ItemID  string
	Message string
	cause   error
}

func (e *IngestError) Error() string {
	path := []string{}
	if e.Term != "" {
		path = append(path, fmt.Sprintf("term '%s'", e.Term))
	}
	if e.Page > 0 {
		path = append(path, fmt.Sprintf("page %d", e.Page))
	}
	if e.ItemID != "" {
		path = append(path, fmt.Sprintf("item '%s'", e.ItemID))
	}

	if len(path) == 0 {
		return e.Message
	}

	return strings.Join(path, " -> ") + ": " + e.Message
}

func (e *IngestError) Unwrap() error {
	return e.cause
}

// Fatal reports whether the error must abort the whole run.
func (e *IngestError) Fatal() bool {
	return e.Kind == KindFatalEngine
}

func (e *IngestError) AddTerm(term string) *IngestError {
	e.Term = term
	return e
}

func (e *IngestError) AddPage(page int) *IngestError {
	e.Page = page
	return e
}

func (e *IngestError) AddItemID(itemID string) *IngestError {
	e.ItemID = itemID
	return e
}

func (e *IngestError) ToHTTPError() *httperror.HTTPError {
	status := http.StatusUnprocessableEntity
	if e.Kind == KindFatalEngine {
		status = http.StatusBadGateway
	}
	return httperror.NewHTTPError(status, e.Error()).AddMetaValue("kind", string(e.Kind)).AddMetaValue("term", e.Term).AddMetaValue("item_id", e.ItemID)
}

func newf(kind Kind, cause error, format string, args ...any) *IngestError {
	return &IngestError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		cause:   cause,
	}
}

// NewExtractionErrorf creates an extraction failure with a formatted message.
func NewExtractionErrorf(format string, args ...any) *IngestError {
	return newf(KindExtraction, nil, format, args...)
}

// NewIdentityErrorf creates an identity failure with a formatted message.
func NewIdentityErrorf(format string, args ...any) *IngestError {
	return newf(KindIdentity, nil, format, args...)
}

// NewPersistenceError wraps a storage failure.
func NewPersistenceError(cause error, msg string) *IngestError {
	return newf(KindPersistence, cause, "%s: %v", msg, cause)
}

// NewFatalEngineError wraps a fetch-engine failure that must abort the run.
func NewFatalEngineError(cause error, msg string) *IngestError {
	return newf(KindFatalEngine, cause, "%s: %v", msg, cause)
}

// AsIngestError returns the typed error when err is one.
func AsIngestError(err error) (*IngestError, bool) {
	ie, ok := err.(*IngestError)
	return ie, ok
}

// IsFatal reports whether err is a fatal engine failure.
func IsFatal(err error) bool {
	ie, ok := AsIngestError(err)
	return ok && ie.Fatal()
}

// KindOf returns the classification of err, or KindPersistence for untyped
// errors surfacing from the storage layer.
func KindOf(err error) Kind {
	if ie, ok := AsIngestError(err); ok {
		return ie.Kind
	}
	return KindPersistence
}
