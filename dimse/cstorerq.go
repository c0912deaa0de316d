package dimse

import (
	"fmt"
	"io"

	"github.com/giesekow/go-dcmnet/commandset"
	"github.com/giesekow/go-dcmnet/dataset"
)

// CStoreRq is the C-STORE-RQ command. P3.7 9.3.1.1.
type CStoreRq struct {
	AffectedSOPClassUID                  string
	MessageID                            MessageID
	Priority                             uint16
	CommandDataSetType                   CommandDataSetType
	AffectedSOPInstanceUID               string
	MoveOriginatorApplicationEntityTitle string
	MoveOriginatorMessageID              MessageID
	Extra                                []*dataset.Element // Unparsed elements
}

func (v *CStoreRq) Encode(e io.Writer) error {
	l := newElementList("CStoreRq")
	l.add(commandset.CommandField, v.CommandField())
	l.add(commandset.AffectedSOPClassUID, v.AffectedSOPClassUID)
	l.add(commandset.MessageID, v.MessageID)
	l.add(commandset.Priority, v.Priority)
	l.add(commandset.CommandDataSetType, uint16(v.CommandDataSetType))
	l.add(commandset.AffectedSOPInstanceUID, v.AffectedSOPInstanceUID)
	l.addIf(v.MoveOriginatorApplicationEntityTitle != "", commandset.MoveOriginatorApplicationEntityTitle, v.MoveOriginatorApplicationEntityTitle)
	l.addIf(v.MoveOriginatorMessageID != 0, commandset.MoveOriginatorMessageID, v.MoveOriginatorMessageID)
	return l.encode(e, v.Extra)
}

func (v *CStoreRq) HasData() bool {
	return v.CommandDataSetType != CommandDataSetTypeNull
}

func (v *CStoreRq) CommandField() uint16 {
	return CommandFieldCStoreRq
}

func (v *CStoreRq) GetMessageID() MessageID {
	return v.MessageID
}

func (v *CStoreRq) GetStatus() *Status {
	return nil
}

func (v *CStoreRq) String() string {
	return fmt.Sprintf("CStoreRq{AffectedSOPClassUID:%v MessageID:%v Priority:%v CommandDataSetType:%v AffectedSOPInstanceUID:%v MoveOriginatorApplicationEntityTitle:%v MoveOriginatorMessageID:%v}",
		v.AffectedSOPClassUID, v.MessageID, v.Priority, v.CommandDataSetType, v.AffectedSOPInstanceUID, v.MoveOriginatorApplicationEntityTitle, v.MoveOriginatorMessageID)
}

func (CStoreRq) decode(d *MessageDecoder) (*CStoreRq, error) {
	r := d.reader("cStoreRq")
	v := &CStoreRq{}
	v.AffectedSOPClassUID = r.str(commandset.AffectedSOPClassUID, "AffectedSOPClassUID", RequiredElement)
	v.MessageID = r.u16(commandset.MessageID, "MessageID", RequiredElement)
	v.Priority = r.u16(commandset.Priority, "Priority", RequiredElement)
	v.CommandDataSetType = r.dataSetType()
	v.AffectedSOPInstanceUID = r.str(commandset.AffectedSOPInstanceUID, "AffectedSOPInstanceUID", RequiredElement)
	v.MoveOriginatorApplicationEntityTitle = r.str(commandset.MoveOriginatorApplicationEntityTitle, "MoveOriginatorApplicationEntityTitle", OptionalElement)
	v.MoveOriginatorMessageID = r.u16(commandset.MoveOriginatorMessageID, "MoveOriginatorMessageID", OptionalElement)
	if r.err != nil {
		return nil, r.err
	}
	v.Extra = d.UnparsedElements()
	return v, nil
}
