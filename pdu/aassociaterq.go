package pdu

import (
	"fmt"
	"strings"

	"github.com/giesekow/go-dcmnet/pdu/pdu_item"
	"github.com/grailbio/go-dicom/dicomio"
)

// AAssociateRQ is the association request. P3.8 9.3.2.
type AAssociateRQ struct {
	ProtocolVersion uint16
	// Reserved uint16
	CalledAETitle  string
	CallingAETitle string
	Items          []pdu_item.SubItem
}

func (AAssociateRQ) Type() Type { return TypeAAssociateRq }

func (AAssociateRQ) Read(d *dicomio.Decoder) (PDU, error) {
	pdu := &AAssociateRQ{}
	var err error
	pdu.ProtocolVersion, pdu.CalledAETitle, pdu.CallingAETitle, pdu.Items, err = readAssociate(d)
	if err != nil {
		return nil, err
	}
	if pdu.CalledAETitle == "" || pdu.CallingAETitle == "" {
		return nil, fmt.Errorf("A_ASSOCIATE.{Called,Calling}AETitle must not be empty, in %v", pdu.String())
	}
	return pdu, nil
}

func (pdu *AAssociateRQ) Write() ([]byte, error) {
	if pdu.CalledAETitle == "" || pdu.CallingAETitle == "" {
		return nil, fmt.Errorf("CalledAETitle or CallingAETitle cannot be empty: %+v", *pdu)
	}
	return encodePayload(func(e *dicomio.Encoder) {
		writeAssociate(e, pdu.ProtocolVersion, pdu.CalledAETitle, pdu.CallingAETitle, pdu.Items)
	})
}

func (pdu *AAssociateRQ) String() string {
	return fmt.Sprintf("A_ASSOCIATE_RQ{version:%v called:'%v' calling:'%v' items:%s}",
		pdu.ProtocolVersion,
		pdu.CalledAETitle, pdu.CallingAETitle, pdu_item.SubItemListString(pdu.Items))
}

// readAssociate parses the body shared by A-ASSOCIATE-RQ and -AC.
func readAssociate(d *dicomio.Decoder) (version uint16, called, calling string, items []pdu_item.SubItem, err error) {
	version = d.ReadUInt16()
	d.Skip(2) // Reserved
	called = strings.TrimRight(d.ReadString(16), " \x00")
	calling = strings.TrimRight(d.ReadString(16), " \x00")
	d.Skip(8 * 4)
	if err = d.Error(); err != nil {
		return
	}
	items, err = pdu_item.DecodeSubItems(d)
	return
}

func writeAssociate(e *dicomio.Encoder, version uint16, called, calling string, items []pdu_item.SubItem) {
	e.WriteUInt16(version)
	e.WriteZeros(2) // Reserved
	e.WriteString(fillString(called))
	e.WriteString(fillString(calling))
	e.WriteZeros(8 * 4)
	for _, item := range items {
		item.Write(e)
	}
}
