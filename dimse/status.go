package dimse

import (
	"fmt"

	"github.com/giesekow/go-dcmnet/commandset"
	"github.com/giesekow/go-dcmnet/dataset"
)

// Status represents a result of a DIMSE call.  P3.7 C defines list of status
// codes and error payloads.
type Status struct {
	// Status==StatusSuccess on success. A non-zero value on error.
	Status StatusCode

	// Optional error payloads.
	ErrorComment string // Encoded as (0000,0902)
}

// Success is an OK status for a call.
var Success = Status{Status: StatusSuccess}

// StatusCode represents a DIMSE service response code, as defined in P3.7
type StatusCode uint16

const (
	StatusSuccess               StatusCode = 0
	StatusCancel                StatusCode = 0xFE00
	StatusSOPClassNotSupported  StatusCode = 0x0122
	StatusInvalidArgumentValue  StatusCode = 0x0115
	StatusInvalidAttributeValue StatusCode = 0x0106
	StatusInvalidObjectInstance StatusCode = 0x0117
	StatusUnrecognizedOperation StatusCode = 0x0211
	StatusNotAuthorized         StatusCode = 0x0124
	StatusPending               StatusCode = 0xFF00
	StatusPendingWarning        StatusCode = 0xFF01
	StatusDuplicateInvocation   StatusCode = 0x0210
	StatusProcessingFailure     StatusCode = 0x0110

	// C-STORE-specific status codes. P3.4 GG4-1
	CStoreOutOfResources              StatusCode = 0xA700
	CStoreCannotUnderstand            StatusCode = 0xC000
	CStoreDataSetDoesNotMatchSOPClass StatusCode = 0xA900

	// C-FIND-specific status codes.
	CFindUnableToProcess StatusCode = 0xC000

	// C-MOVE/C-GET-specific status codes.
	CMoveOutOfResourcesUnableToCalculateNumberOfMatches StatusCode = 0xA701
	CMoveOutOfResourcesUnableToPerformSubOperations     StatusCode = 0xA702
	CMoveMoveDestinationUnknown                         StatusCode = 0xA801
	CMoveDataSetDoesNotMatchSOPClass                    StatusCode = 0xA900

	// Warning codes.
	StatusAttributeValueOutOfRange StatusCode = 0x0116
	StatusAttributeListError       StatusCode = 0x0107
	StatusSubOperationsWarning     StatusCode = 0xB000
)

// IsPending is true for the interim responses of C-FIND, C-GET and C-MOVE.
func (s Status) IsPending() bool {
	return s.Status == StatusPending || s.Status == StatusPendingWarning
}

// IsSuccess is true only for the success code.
func (s Status) IsSuccess() bool {
	return s.Status == StatusSuccess
}

// IsWarning is true for the warning code ranges of P3.7 C.
func (s Status) IsWarning() bool {
	c := s.Status
	return c == StatusAttributeListError || c == StatusAttributeValueOutOfRange ||
		c&0xF000 == 0xB000
}

func (s Status) String() string {
	if s.ErrorComment != "" {
		return fmt.Sprintf("status{0x%04x %q}", uint16(s.Status), s.ErrorComment)
	}
	return fmt.Sprintf("status{0x%04x}", uint16(s.Status))
}

func (s *Status) ToElements() ([]*dataset.Element, error) {
	statusElement, err := NewElement(commandset.Status, uint16(s.Status))
	if err != nil {
		return nil, fmt.Errorf("Status.ToElements: error creating status element with status %v: %w", s.Status, err)
	}
	elems := []*dataset.Element{statusElement}
	if s.ErrorComment != "" {
		errorCommentElement, err := NewElement(commandset.ErrorComment, s.ErrorComment)
		if err != nil {
			return nil, fmt.Errorf("Status.ToElements: error creating error comment element with comment %v: %w", s.ErrorComment, err)
		}
		elems = append(elems, errorCommentElement)
	}
	return elems, nil
}
