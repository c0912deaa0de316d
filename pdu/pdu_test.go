package pdu

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/giesekow/go-dcmnet/pdu/pdu_item"
	"github.com/grailbio/go-dicom/dicomuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const verificationSOPClass = "1.2.840.10008.1.1"

func roundTrip(t *testing.T, in PDU) PDU {
	t.Helper()
	data, err := EncodePDU(in)
	require.NoError(t, err)
	out, err := ReadPDU(bytes.NewReader(data), 0)
	require.NoError(t, err)
	return out
}

func associateItems() []pdu_item.SubItem {
	return []pdu_item.SubItem{
		&pdu_item.ApplicationContextItem{Name: pdu_item.DICOMApplicationContextItemName},
		pdu_item.NewPresentationContextRequest(1, verificationSOPClass,
			[]string{dicomuid.ExplicitVRLittleEndian, dicomuid.ImplicitVRLittleEndian}),
		pdu_item.NewPresentationContextRequest(3, "1.2.840.10008.5.1.4.1.1.2",
			[]string{dicomuid.ImplicitVRLittleEndian}),
		&pdu_item.UserInformationItem{Items: []pdu_item.SubItem{
			&pdu_item.UserInformationMaximumLengthItem{MaximumLengthReceived: 16384},
			&pdu_item.ImplementationClassUIDSubItem{Name: "1.2.3.4"},
			&pdu_item.AsynchronousOperationsWindowSubItem{MaxOpsInvoked: 1, MaxOpsPerformed: 1},
			&pdu_item.RoleSelectionSubItem{SOPClassUID: "1.2.840.10008.5.1.4.1.1.2", SCURole: 1, SCPRole: 0},
			&pdu_item.ImplementationVersionNameSubItem{Name: "DCMNET_1"},
		}},
	}
}

func TestAAssociateRQRoundTrip(t *testing.T) {
	in := &AAssociateRQ{
		ProtocolVersion: CurrentProtocolVersion,
		CalledAETitle:   "STORESCP",
		CallingAETitle:  "STORESCU",
		Items:           associateItems(),
	}
	out := roundTrip(t, in)
	require.IsType(t, &AAssociateRQ{}, out)
	assert.Equal(t, in, out)
}

func TestAAssociateACRoundTrip(t *testing.T) {
	in := &AAssociateAC{
		ProtocolVersion: CurrentProtocolVersion,
		CalledAETitle:   "STORESCP",
		CallingAETitle:  "STORESCU",
		Items: []pdu_item.SubItem{
			&pdu_item.ApplicationContextItem{Name: pdu_item.DICOMApplicationContextItemName},
			&pdu_item.PresentationContextItem{
				Type:      pdu_item.ItemTypePresentationContextResponse,
				ContextID: 1,
				Result:    pdu_item.PresentationContextAccepted,
				Items:     []pdu_item.SubItem{&pdu_item.TransferSyntaxSubItem{Name: dicomuid.ExplicitVRLittleEndian}},
			},
			&pdu_item.PresentationContextItem{
				Type:      pdu_item.ItemTypePresentationContextResponse,
				ContextID: 3,
				Result:    pdu_item.PresentationContextProviderRejectionAbstractSyntaxNotSupported,
				Items:     []pdu_item.SubItem{&pdu_item.TransferSyntaxSubItem{Name: dicomuid.ImplicitVRLittleEndian}},
			},
		},
	}
	assert.Equal(t, in, roundTrip(t, in))
}

func TestSmallPDUsRoundTrip(t *testing.T) {
	for _, in := range []PDU{
		&AAssociateRj{Result: ResultRejectedPermanent, Source: SourceULServiceUser, Reason: RejectReasonCalledAETitleNotRecognized},
		&AReleaseRq{},
		&AReleaseRp{},
		&AAbort{Source: AbortSourceServiceProvider, Reason: AbortReasonUnexpectedPDU},
		&PDataTf{Items: []PresentationDataValueItem{
			{ContextID: 1, Command: true, Last: true, Value: []byte{1, 2, 3, 4}},
			{ContextID: 1, Command: false, Last: false, Value: []byte{5, 6}},
		}},
	} {
		t.Run(in.Type().String(), func(t *testing.T) {
			assert.Equal(t, in, roundTrip(t, in))
		})
	}
}

func TestPDVHeaderBits(t *testing.T) {
	in := &PDataTf{Items: []PresentationDataValueItem{{ContextID: 5, Command: true, Last: true, Value: []byte{0xAA, 0xBB}}}}
	data, err := EncodePDU(in)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x04, 0x00, 0x00, 0x00, 0x00, 0x08, // header
		0x00, 0x00, 0x00, 0x04, // PDV length
		0x05, 0x03, 0xAA, 0xBB,
	}, data)
}

func TestUnknownSubItemIsSkippedAndPreserved(t *testing.T) {
	in := &AAssociateRQ{
		ProtocolVersion: CurrentProtocolVersion,
		CalledAETitle:   "A",
		CallingAETitle:  "B",
		Items: []pdu_item.SubItem{
			&pdu_item.ApplicationContextItem{Name: pdu_item.DICOMApplicationContextItemName},
			&pdu_item.SubItemUnsupported{Type: 0x7A, Data: []byte("vendor extension")},
			&pdu_item.UserInformationItem{Items: []pdu_item.SubItem{
				&pdu_item.SubItemUnsupported{Type: 0x58, Data: []byte{1, 2, 3}},
				&pdu_item.UserInformationMaximumLengthItem{MaximumLengthReceived: 32768},
			}},
		},
	}
	out := roundTrip(t, in).(*AAssociateRQ)
	require.Len(t, out.Items, 3)
	assert.Equal(t, in.Items[1], out.Items[1])
	ui := out.Items[2].(*pdu_item.UserInformationItem)
	assert.Equal(t, &pdu_item.UserInformationMaximumLengthItem{MaximumLengthReceived: 32768}, ui.Items[1])

	data, err := EncodePDU(out)
	require.NoError(t, err)
	orig, err := EncodePDU(in)
	require.NoError(t, err)
	assert.Equal(t, orig, data)
}

func TestHeaderLengthMismatch(t *testing.T) {
	data, err := EncodePDU(&AAbort{Source: AbortSourceServiceUser})
	require.NoError(t, err)

	// Body longer than the fixed A-ABORT layout.
	long := append([]byte{}, data...)
	long = append(long, 0, 0)
	binary.BigEndian.PutUint32(long[2:], 6)
	_, err = ReadPDU(bytes.NewReader(long), 0)
	assert.ErrorIs(t, err, ErrMalformedPDU)

	// Header announcing more than the stream holds.
	short := append([]byte{}, data...)
	binary.BigEndian.PutUint32(short[2:], 10)
	_, err = ReadPDU(bytes.NewReader(short), 0)
	assert.Error(t, err)
}

func TestSubItemOverrun(t *testing.T) {
	in := &AAssociateRQ{
		ProtocolVersion: CurrentProtocolVersion,
		CalledAETitle:   "A",
		CallingAETitle:  "B",
		Items:           []pdu_item.SubItem{&pdu_item.ApplicationContextItem{Name: pdu_item.DICOMApplicationContextItemName}},
	}
	data, err := EncodePDU(in)
	require.NoError(t, err)
	// The application context item starts after the 6-byte header and the
	// 68-byte fixed fields. Bump its length past the end of the body.
	binary.BigEndian.PutUint16(data[6+68+2:], 200)
	_, err = ReadPDU(bytes.NewReader(data), 0)
	assert.ErrorIs(t, err, ErrMalformedPDU)
}

func TestOversizedPDataRejected(t *testing.T) {
	in := &PDataTf{Items: []PresentationDataValueItem{{ContextID: 1, Last: true, Value: make([]byte, 1000)}}}
	data, err := EncodePDU(in)
	require.NoError(t, err)
	_, err = ReadPDU(bytes.NewReader(data), 512)
	assert.ErrorIs(t, err, ErrPDUTooLarge)
	_, err = ReadPDU(bytes.NewReader(data), 1006)
	assert.NoError(t, err)
}

func TestUnknownPDUType(t *testing.T) {
	_, err := ReadPDU(bytes.NewReader([]byte{0x09, 0, 0, 0, 0, 0}), 0)
	assert.ErrorIs(t, err, ErrMalformedPDU)
}

func TestEmptyAETitleRejected(t *testing.T) {
	_, err := EncodePDU(&AAssociateRQ{ProtocolVersion: 1, CalledAETitle: "X"})
	assert.Error(t, err)
}

func TestEvenContextIDRejected(t *testing.T) {
	in := &AAssociateRQ{
		ProtocolVersion: CurrentProtocolVersion,
		CalledAETitle:   "A",
		CallingAETitle:  "B",
		Items: []pdu_item.SubItem{
			pdu_item.NewPresentationContextRequest(2, verificationSOPClass, []string{dicomuid.ImplicitVRLittleEndian}),
		},
	}
	data, err := EncodePDU(in)
	require.NoError(t, err)
	_, err = ReadPDU(bytes.NewReader(data), 0)
	assert.ErrorIs(t, err, ErrMalformedPDU)
}

func TestRejectStrings(t *testing.T) {
	rj := &AAssociateRj{Result: ResultRejectedPermanent, Source: SourceULServiceProviderACSE, Reason: RejectReasonProtocolVersionNotSupported}
	assert.Contains(t, rj.String(), "protocol-version-not-supported")
	rj.Source = SourceULServiceUser
	assert.Contains(t, rj.String(), "application-context-name-not-supported")
}
