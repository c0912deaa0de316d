package pdu

import (
	"fmt"

	"github.com/grailbio/go-dicom/dicomio"
)

// AAssociateRj is the association rejection. P3.8 9.3.4.
type AAssociateRj struct {
	Result RejectResultType
	Source SourceType
	Reason RejectReasonType
}

// RejectResultType is the Result field of AAssociateRj.
type RejectResultType byte

const (
	ResultRejectedPermanent RejectResultType = 1
	ResultRejectedTransient RejectResultType = 2
)

func (r RejectResultType) String() string {
	switch r {
	case ResultRejectedPermanent:
		return "rejected-permanent"
	case ResultRejectedTransient:
		return "rejected-transient"
	}
	return fmt.Sprintf("RejectResult(%d)", byte(r))
}

// SourceType is the Source field of AAssociateRj.
type SourceType byte

const (
	SourceULServiceUser                 SourceType = 1
	SourceULServiceProviderACSE         SourceType = 2
	SourceULServiceProviderPresentation SourceType = 3
)

func (s SourceType) String() string {
	switch s {
	case SourceULServiceUser:
		return "service-user"
	case SourceULServiceProviderACSE:
		return "service-provider(ACSE)"
	case SourceULServiceProviderPresentation:
		return "service-provider(presentation)"
	}
	return fmt.Sprintf("Source(%d)", byte(s))
}

// RejectReasonType is the Reason/Diag. field of AAssociateRj. Its meaning
// depends on the source, so several constants share a value.
type RejectReasonType byte

const (
	// Source SourceULServiceUser.
	RejectReasonNone                               RejectReasonType = 1
	RejectReasonApplicationContextNameNotSupported RejectReasonType = 2
	RejectReasonCallingAETitleNotRecognized        RejectReasonType = 3
	RejectReasonCalledAETitleNotRecognized         RejectReasonType = 7

	// Source SourceULServiceProviderACSE.
	RejectReasonProtocolVersionNotSupported RejectReasonType = 2

	// Source SourceULServiceProviderPresentation.
	RejectReasonTemporaryCongestion RejectReasonType = 1
	RejectReasonLocalLimitExceeded  RejectReasonType = 2
)

// ReasonString describes the reason in the context of the source.
func (pdu *AAssociateRj) ReasonString() string {
	switch pdu.Source {
	case SourceULServiceUser:
		switch pdu.Reason {
		case RejectReasonNone:
			return "no-reason-given"
		case RejectReasonApplicationContextNameNotSupported:
			return "application-context-name-not-supported"
		case RejectReasonCallingAETitleNotRecognized:
			return "calling-AE-title-not-recognized"
		case RejectReasonCalledAETitleNotRecognized:
			return "called-AE-title-not-recognized"
		}
	case SourceULServiceProviderACSE:
		switch pdu.Reason {
		case RejectReasonNone:
			return "no-reason-given"
		case RejectReasonProtocolVersionNotSupported:
			return "protocol-version-not-supported"
		}
	case SourceULServiceProviderPresentation:
		switch pdu.Reason {
		case RejectReasonTemporaryCongestion:
			return "temporary-congestion"
		case RejectReasonLocalLimitExceeded:
			return "local-limit-exceeded"
		}
	}
	return fmt.Sprintf("reason(%d)", byte(pdu.Reason))
}

func (AAssociateRj) Type() Type { return TypeAAssociateRj }

func (AAssociateRj) Read(d *dicomio.Decoder) (PDU, error) {
	pdu := &AAssociateRj{}
	d.Skip(1) // reserved
	pdu.Result = RejectResultType(d.ReadByte())
	pdu.Source = SourceType(d.ReadByte())
	pdu.Reason = RejectReasonType(d.ReadByte())
	if err := d.Error(); err != nil {
		return nil, err
	}
	return pdu, nil
}

func (pdu *AAssociateRj) Write() ([]byte, error) {
	return encodePayload(func(e *dicomio.Encoder) {
		e.WriteZeros(1)
		e.WriteByte(byte(pdu.Result))
		e.WriteByte(byte(pdu.Source))
		e.WriteByte(byte(pdu.Reason))
	})
}

func (pdu *AAssociateRj) String() string {
	return fmt.Sprintf("A_ASSOCIATE_RJ{result: %v, source: %v, reason: %v}", pdu.Result, pdu.Source, pdu.ReasonString())
}
