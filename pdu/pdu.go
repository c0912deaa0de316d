// Package pdu implements the DICOM upper layer protocol data units. P3.8 9.3.
package pdu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/giesekow/go-dcmnet/pdu/pdu_item"
	"github.com/grailbio/go-dicom/dicomio"
)

var (
	// ErrMalformedPDU reports a PDU whose body does not parse, e.g. a
	// sub-item that overruns the body or bytes left over after it.
	ErrMalformedPDU = errors.New("malformed PDU")

	// ErrPDUTooLarge reports a PDU whose header announces more bytes than
	// the reader accepts.
	ErrPDUTooLarge = errors.New("PDU too large")
)

// PDU is the interface for DUL messages like A-ASSOCIATE-AC, P-DATA-TF.
type PDU interface {
	fmt.Stringer

	// Type is the value of the first header byte.
	Type() Type

	// Write encodes the PDU payload. The payload excludes the 6 header
	// bytes common to all PDU types; EncodePDU adds them.
	Write() ([]byte, error)
}

// Type defines type of the PDU packet.
type Type byte

const (
	TypeAAssociateRq Type = 1 // A_ASSOCIATE_RQ
	TypeAAssociateAc Type = 2 // A_ASSOCIATE_AC
	TypeAAssociateRj Type = 3 // A_ASSOCIATE_RJ
	TypePDataTf      Type = 4 // P_DATA_TF
	TypeAReleaseRq   Type = 5 // A_RELEASE_RQ
	TypeAReleaseRp   Type = 6 // A_RELEASE_RP
	TypeAAbort       Type = 7 // A_ABORT
)

func (t Type) String() string {
	switch t {
	case TypeAAssociateRq:
		return "A_ASSOCIATE_RQ"
	case TypeAAssociateAc:
		return "A_ASSOCIATE_AC"
	case TypeAAssociateRj:
		return "A_ASSOCIATE_RJ"
	case TypePDataTf:
		return "P_DATA_TF"
	case TypeAReleaseRq:
		return "A_RELEASE_RQ"
	case TypeAReleaseRp:
		return "A_RELEASE_RP"
	case TypeAAbort:
		return "A_ABORT"
	}
	return fmt.Sprintf("Type(%d)", byte(t))
}

// CurrentProtocolVersion is the only protocol version defined by P3.8.
const CurrentProtocolVersion uint16 = 1

// DefaultMaxPDUSize is the maximum P-DATA-TF body size advertised when the
// caller does not pick one.
const DefaultMaxPDUSize = 4 << 20

// maxControlPDUSize caps the body of non P-DATA PDUs. An A-ASSOCIATE with
// a few hundred presentation contexts is still far below it.
const maxControlPDUSize = 1 << 20

// EncodePDU serializes "pdu" into []byte.
func EncodePDU(pdu PDU) ([]byte, error) {
	payload, err := pdu.Write()
	if err != nil {
		return nil, fmt.Errorf("EncodePDU %v: %w", pdu.Type(), err)
	}
	header := make([]byte, 6, 6+len(payload))
	header[0] = byte(pdu.Type())
	header[1] = 0 // Reserved.
	binary.BigEndian.PutUint32(header[2:6], uint32(len(payload)))
	return append(header, payload...), nil
}

// ReadPDU reads one PDU from a stream. maxPDUSize bounds the body of a
// P-DATA-TF; zero means DefaultMaxPDUSize. I/O errors, io.EOF included, are
// returned unwrapped when they happen before the first header byte.
func ReadPDU(in io.Reader, maxPDUSize int) (PDU, error) {
	var header [6]byte
	if _, err := io.ReadFull(in, header[:1]); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(in, header[1:]); err != nil {
		return nil, fmt.Errorf("ReadPDU: truncated header: %w", err)
	}
	pduType := Type(header[0])
	length := binary.BigEndian.Uint32(header[2:6])
	limit := uint32(maxControlPDUSize)
	if pduType == TypePDataTf {
		limit = uint32(DefaultMaxPDUSize)
		if maxPDUSize > 0 {
			limit = uint32(maxPDUSize)
		}
	}
	if length > limit {
		return nil, fmt.Errorf("ReadPDU: %v with %d bytes exceeds the limit of %d: %w", pduType, length, limit, ErrPDUTooLarge)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(in, body); err != nil {
		return nil, fmt.Errorf("ReadPDU: %v body: %w", pduType, err)
	}
	return DecodePDU(pduType, body)
}

// DecodePDU parses the body of a PDU of the given type. The whole body must
// be consumed.
func DecodePDU(pduType Type, body []byte) (PDU, error) {
	d := pdu_item.NewDecoder(body)
	var (
		pdu PDU
		err error
	)
	switch pduType {
	case TypeAAssociateRq:
		pdu, err = AAssociateRQ{}.Read(d)
	case TypeAAssociateAc:
		pdu, err = AAssociateAC{}.Read(d)
	case TypeAAssociateRj:
		pdu, err = AAssociateRj{}.Read(d)
	case TypePDataTf:
		pdu, err = PDataTf{}.Read(d)
	case TypeAReleaseRq:
		pdu, err = AReleaseRq{}.Read(d)
	case TypeAReleaseRp:
		pdu, err = AReleaseRp{}.Read(d)
	case TypeAAbort:
		pdu, err = AAbort{}.Read(d)
	default:
		return nil, fmt.Errorf("DecodePDU: unknown PDU type %d: %w", byte(pduType), ErrMalformedPDU)
	}
	if err == nil {
		err = d.Finish()
	}
	if err != nil {
		return nil, fmt.Errorf("DecodePDU %v (%d bytes): %v: %w", pduType, len(body), err, ErrMalformedPDU)
	}
	return pdu, nil
}

// fillString pads the string with " " up to 16 bytes, the width of an AE
// title field.
func fillString(v string) string {
	if len(v) > 16 {
		return v[:16]
	}
	for len(v) < 16 {
		v += " "
	}
	return v
}

func encodePayload(write func(e *dicomio.Encoder)) ([]byte, error) {
	e := pdu_item.NewEncoder()
	write(e)
	if err := e.Error(); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}
