package generation

// Kind identifies which variant of a Result is populated.
type Kind string

const (
	KindQuery         Kind = "query"
	KindClarification Kind = "clarification"
	KindFailure       Kind = "failure"
)

// Status labels shared with API clients.
const (
	StatusSuccess            = "success"
	StatusNeedsClarification = "needs_clarification"
	StatusError              = "error"
)

// Result is the outcome of one generation: exactly one of a query, a clarification
// request or a failure. The zero value is not valid; use Query, Clarify or Fail.
type Result struct {
	kind Kind
	text string
}

// Query wraps a generated query.
func Query(text string) Result { return Result{kind: KindQuery, text: text} }

// Clarify wraps a request for the caller to disambiguate the question.
func Clarify(message string) Result { return Result{kind: KindClarification, text: message} }

// Fail wraps a service failure.
func Fail(reason string) Result { return Result{kind: KindFailure, text: reason} }

// Kind returns the populated variant.
func (r Result) Kind() Kind { return r.kind }

// Query returns the generated query if r is a query.
func (r Result) Query() (string, bool) {
	return r.text, r.kind == KindQuery
}

// Clarification returns the clarification message if r asks for one.
func (r Result) Clarification() (string, bool) {
	return r.text, r.kind == KindClarification
}

// Failure returns the failure reason if generation failed.
func (r Result) Failure() (string, bool) {
	return r.text, r.kind == KindFailure
}

// Status maps the variant to its client-facing label.
func (r Result) Status() string {
	switch r.kind {
	case KindQuery:
		return StatusSuccess
	case KindClarification:
		return StatusNeedsClarification
	default:
		return StatusError
	}
}
