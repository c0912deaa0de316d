package pdu

import (
	"fmt"

	"github.com/giesekow/go-dcmnet/pdu/pdu_item"
	"github.com/grailbio/go-dicom/dicomio"
)

// AAssociateAC is the association acceptance. P3.8 9.3.3. The AE titles
// are copied from the request.
type AAssociateAC struct {
	ProtocolVersion uint16
	CalledAETitle   string
	CallingAETitle  string
	Items           []pdu_item.SubItem
}

func (AAssociateAC) Type() Type { return TypeAAssociateAc }

func (AAssociateAC) Read(d *dicomio.Decoder) (PDU, error) {
	pdu := &AAssociateAC{}
	var err error
	pdu.ProtocolVersion, pdu.CalledAETitle, pdu.CallingAETitle, pdu.Items, err = readAssociate(d)
	if err != nil {
		return nil, err
	}
	return pdu, nil
}

func (pdu *AAssociateAC) Write() ([]byte, error) {
	return encodePayload(func(e *dicomio.Encoder) {
		writeAssociate(e, pdu.ProtocolVersion, pdu.CalledAETitle, pdu.CallingAETitle, pdu.Items)
	})
}

func (pdu *AAssociateAC) String() string {
	return fmt.Sprintf("A_ASSOCIATE_AC{version:%v called:'%v' calling:'%v' items:%s}",
		pdu.ProtocolVersion,
		pdu.CalledAETitle, pdu.CallingAETitle, pdu_item.SubItemListString(pdu.Items))
}
