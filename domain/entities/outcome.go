package entities

// Default rejection values used when a policy rejects without explaining why.
const (
	DefaultRejectionCode    = "rejected"
	DefaultRejectionMessage = "request rejected"
)

// ValidationOutcome is the decision a policy returns for one admission request.
// It is a closed set: Accepted, Mutated and Rejected are its only members.
type ValidationOutcome interface {
	isValidationOutcome()
}

// Accepted admits the request unchanged.
type Accepted struct {
	AuditAnnotations map[string]string
	Warnings         []string
}

// Mutated admits the request with Object as the complete replacement object.
type Mutated struct {
	// Object is any value encodable as a JSON document, typically a typed
	// Kubernetes object or an *unstructured.Unstructured.
	Object           any
	AuditAnnotations map[string]string
	Warnings         []string
}

// Rejected denies the request.
type Rejected struct {
	// Code is machine readable, e.g. "capability-denied".
	Code string

	// Message is shown to the API client.
	Message string
}

func (Accepted) isValidationOutcome() {}
func (Mutated) isValidationOutcome()  {}
func (Rejected) isValidationOutcome() {}

// Accept admits the request.
func Accept() ValidationOutcome {
	return Accepted{}
}

// AcceptWithWarnings admits the request and returns warnings to the client.
func AcceptWithWarnings(warnings ...string) ValidationOutcome {
	return Accepted{Warnings: warnings}
}

// AcceptWithMutation admits the request, replacing the object with obj.
// A nil obj is a plain acceptance.
func AcceptWithMutation(obj any) ValidationOutcome {
	if obj == nil {
		return Accepted{}
	}
	return Mutated{Object: obj}
}

// Reject denies the request. Empty values are replaced by the defaults.
func Reject(code, message string) ValidationOutcome {
	return NewRejected(code, message)
}

// NewRejected builds a Rejected value with the defaults applied.
func NewRejected(code, message string) Rejected {
	if code == "" {
		code = DefaultRejectionCode
	}
	if message == "" {
		message = DefaultRejectionMessage
	}
	return Rejected{Code: code, Message: message}
}

// Decide combines a possible rejection with a possible mutation.
// A rejection always wins; a mutation is only applied on acceptance.
func Decide(rejection *Rejected, mutated any) ValidationOutcome {
	if rejection != nil {
		return NewRejected(rejection.Code, rejection.Message)
	}
	return AcceptWithMutation(mutated)
}

// Normalize returns the value form of an outcome, so that *Accepted, *Mutated
// and *Rejected behave like Accepted, Mutated and Rejected. A nil pointer
// yields nil.
func Normalize(o ValidationOutcome) ValidationOutcome {
	switch p := o.(type) {
	case *Accepted:
		if p == nil {
			return nil
		}
		return *p
	case *Mutated:
		if p == nil {
			return nil
		}
		return *p
	case *Rejected:
		if p == nil {
			return nil
		}
		return *p
	default:
		return o
	}
}

// IsAccepted reports whether the outcome admits the request, with or without mutation.
func IsAccepted(o ValidationOutcome) bool {
	switch Normalize(o).(type) {
	case Accepted, Mutated:
		return true
	default:
		return false
	}
}
