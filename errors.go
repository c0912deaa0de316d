package netdicom

import (
	"errors"
	"fmt"

	"github.com/giesekow/go-dcmnet/dimse"
	"github.com/giesekow/go-dcmnet/pdu"
)

var (
	// ErrAssociationClosed is returned by every Association call once the
	// association is gone. The cause, if any, is wrapped alongside it.
	ErrAssociationClosed = errors.New("association closed")

	// ErrAssociationRejected matches a *RejectError.
	ErrAssociationRejected = errors.New("association rejected")

	// ErrAssociationAborted matches an *AbortError.
	ErrAssociationAborted = errors.New("association aborted")

	// ErrNoPresentationContext reports a SOP class or context ID that has
	// no accepted presentation context on the association.
	ErrNoPresentationContext = errors.New("no accepted presentation context")

	// ErrReleasePending is returned by Send while a release started by
	// this side waits for the peer's A-RELEASE-RP.
	ErrReleasePending = errors.New("association release in progress")

	// ErrTimeout reports an expired ARTIM timer: the peer did not answer an
	// A-ASSOCIATE-RQ or A-RELEASE-RQ in time.
	ErrTimeout = errors.New("association timer expired")
)

// RejectError is the A-ASSOCIATE-RJ received from, or sent to, the peer.
type RejectError struct {
	Result pdu.RejectResultType
	Source pdu.SourceType
	Reason pdu.RejectReasonType
}

func (e *RejectError) Error() string {
	rj := pdu.AAssociateRj{Result: e.Result, Source: e.Source, Reason: e.Reason}
	return fmt.Sprintf("association rejected: %v, source %v, reason %s", e.Result, e.Source, rj.ReasonString())
}

func (e *RejectError) Is(target error) bool { return target == ErrAssociationRejected }

// AbortError describes an association that ended in A-ABORT. Local is true
// when this side sent the abort; Err then holds what triggered it.
type AbortError struct {
	Source pdu.AbortSourceType
	Reason pdu.AbortReasonType
	Local  bool
	Err    error
}

func (e *AbortError) Error() string {
	who := "peer"
	if e.Local {
		who = "local"
	}
	if e.Err != nil {
		return fmt.Sprintf("association aborted by %s %v (%v): %v", who, e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("association aborted by %s %v (%v)", who, e.Source, e.Reason)
}

func (e *AbortError) Is(target error) bool { return target == ErrAssociationAborted }

func (e *AbortError) Unwrap() error { return e.Err }

// StatusError is a DIMSE response whose status is neither success nor
// pending. The service-user helpers return it.
type StatusError struct {
	Op     string
	Status dimse.Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Status)
}

func doassert(cond bool, values ...any) {
	if !cond {
		var s string
		for _, value := range values {
			s += fmt.Sprintf("%v ", value)
		}
		panic(s)
	}
}
