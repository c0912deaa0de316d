package pdu

import (
	"fmt"

	"github.com/grailbio/go-dicom/dicomio"
)

// AbortSourceType is the Source field of AAbort. P3.8 9.3.8.
type AbortSourceType byte

const (
	AbortSourceServiceUser     AbortSourceType = 0
	AbortSourceServiceProvider AbortSourceType = 2
)

func (s AbortSourceType) String() string {
	switch s {
	case AbortSourceServiceUser:
		return "service-user"
	case AbortSourceServiceProvider:
		return "service-provider"
	}
	return fmt.Sprintf("AbortSource(%d)", byte(s))
}

// AbortReasonType is the Reason/Diag. field of AAbort. It is only
// meaningful when the source is the service provider.
type AbortReasonType byte

const (
	AbortReasonNotSpecified             AbortReasonType = 0
	AbortReasonUnrecognizedPDU          AbortReasonType = 1
	AbortReasonUnexpectedPDU            AbortReasonType = 2
	AbortReasonUnrecognizedPDUParameter AbortReasonType = 4
	AbortReasonUnexpectedPDUParameter   AbortReasonType = 5
	AbortReasonInvalidPDUParameterValue AbortReasonType = 6
)

func (r AbortReasonType) String() string {
	switch r {
	case AbortReasonNotSpecified:
		return "not-specified"
	case AbortReasonUnrecognizedPDU:
		return "unrecognized-PDU"
	case AbortReasonUnexpectedPDU:
		return "unexpected-PDU"
	case AbortReasonUnrecognizedPDUParameter:
		return "unrecognized-PDU-parameter"
	case AbortReasonUnexpectedPDUParameter:
		return "unexpected-PDU-parameter"
	case AbortReasonInvalidPDUParameterValue:
		return "invalid-PDU-parameter-value"
	}
	return fmt.Sprintf("AbortReason(%d)", byte(r))
}

// AAbort is the A-ABORT PDU.
type AAbort struct {
	Source AbortSourceType
	Reason AbortReasonType
}

func (AAbort) Type() Type { return TypeAAbort }

func (AAbort) Read(d *dicomio.Decoder) (PDU, error) {
	pdu := &AAbort{}
	d.Skip(2)
	pdu.Source = AbortSourceType(d.ReadByte())
	pdu.Reason = AbortReasonType(d.ReadByte())
	if err := d.Error(); err != nil {
		return nil, err
	}
	return pdu, nil
}

func (pdu *AAbort) Write() ([]byte, error) {
	return encodePayload(func(e *dicomio.Encoder) {
		e.WriteZeros(2)
		e.WriteByte(byte(pdu.Source))
		e.WriteByte(byte(pdu.Reason))
	})
}

func (pdu *AAbort) String() string {
	return fmt.Sprintf("A_ABORT{source:%v reason:%v}", pdu.Source, pdu.Reason)
}
