package dataset

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/grailbio/go-dicom/dicomio"
	"github.com/grailbio/go-dicom/dicomuid"
)

// ErrUnknownTransferSyntax is returned for UIDs that are not transfer
// syntaxes.
var ErrUnknownTransferSyntax = errors.New("unknown transfer syntax")

// TransferSyntax describes how a data set is laid out in bytes.
type TransferSyntax struct {
	UID        string
	ByteOrder  binary.ByteOrder
	ExplicitVR bool
	// Encapsulated syntaxes carry compressed pixel data in fragments.
	Encapsulated bool
	// Deflated syntaxes compress the whole data set with DEFLATE.
	Deflated bool
}

var (
	ImplicitVRLittleEndian = TransferSyntax{
		UID:       dicomuid.ImplicitVRLittleEndian,
		ByteOrder: binary.LittleEndian,
	}
	ExplicitVRLittleEndian = TransferSyntax{
		UID:        dicomuid.ExplicitVRLittleEndian,
		ByteOrder:  binary.LittleEndian,
		ExplicitVR: true,
	}
	ExplicitVRBigEndian = TransferSyntax{
		UID:        dicomuid.ExplicitVRBigEndian,
		ByteOrder:  binary.BigEndian,
		ExplicitVR: true,
	}
	DeflatedExplicitVRLittleEndian = TransferSyntax{
		UID:        dicomuid.DeflatedExplicitVRLittleEndian,
		ByteOrder:  binary.LittleEndian,
		ExplicitVR: true,
		Deflated:   true,
	}
)

// StandardTransferSyntaxes are the uncompressed syntaxes every peer is
// expected to understand, most preferred first.
var StandardTransferSyntaxes = []string{
	dicomuid.ExplicitVRLittleEndian,
	dicomuid.ImplicitVRLittleEndian,
	dicomuid.ExplicitVRBigEndian,
}

// LookupTransferSyntax maps a transfer syntax UID to its descriptor. Any
// transfer syntax other than the four native ones is treated as encapsulated
// with the byte layout grailbio's dicomio assigns to it.
func LookupTransferSyntax(uid string) (TransferSyntax, error) {
	switch uid {
	case ImplicitVRLittleEndian.UID:
		return ImplicitVRLittleEndian, nil
	case ExplicitVRLittleEndian.UID:
		return ExplicitVRLittleEndian, nil
	case ExplicitVRBigEndian.UID:
		return ExplicitVRBigEndian, nil
	case DeflatedExplicitVRLittleEndian.UID:
		return DeflatedExplicitVRLittleEndian, nil
	}
	bo, implicit, err := dicomio.ParseTransferSyntaxUID(uid)
	if err != nil {
		return TransferSyntax{}, fmt.Errorf("LookupTransferSyntax %q: %v: %w", uid, err, ErrUnknownTransferSyntax)
	}
	return TransferSyntax{
		UID:          uid,
		ByteOrder:    bo,
		ExplicitVR:   implicit != dicomio.ImplicitVR,
		Encapsulated: true,
	}, nil
}

func (ts TransferSyntax) implicitVR() dicomio.IsImplicitVR {
	if ts.ExplicitVR {
		return dicomio.ExplicitVR
	}
	return dicomio.ImplicitVR
}

func (ts TransferSyntax) String() string {
	return dicomuid.UIDString(ts.UID)
}
