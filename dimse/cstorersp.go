package dimse

import (
	"fmt"
	"io"

	"github.com/giesekow/go-dcmnet/commandset"
	"github.com/giesekow/go-dcmnet/dataset"
)

// CStoreRsp is the C-STORE-RSP command. P3.7 9.3.1.2.
type CStoreRsp struct {
	AffectedSOPClassUID       string
	MessageIDBeingRespondedTo MessageID
	CommandDataSetType        CommandDataSetType
	AffectedSOPInstanceUID    string
	Status                    Status
	Extra                     []*dataset.Element // Unparsed elements
}

func (v *CStoreRsp) Encode(e io.Writer) error {
	l := newElementList("CStoreRsp")
	l.add(commandset.CommandField, v.CommandField())
	l.add(commandset.AffectedSOPClassUID, v.AffectedSOPClassUID)
	l.add(commandset.MessageIDBeingRespondedTo, v.MessageIDBeingRespondedTo)
	l.add(commandset.CommandDataSetType, uint16(v.CommandDataSetType))
	l.add(commandset.AffectedSOPInstanceUID, v.AffectedSOPInstanceUID)
	l.addStatus(&v.Status)
	return l.encode(e, v.Extra)
}

func (v *CStoreRsp) HasData() bool {
	return v.CommandDataSetType != CommandDataSetTypeNull
}

func (v *CStoreRsp) CommandField() uint16 {
	return CommandFieldCStoreRsp
}

func (v *CStoreRsp) GetMessageID() MessageID {
	return v.MessageIDBeingRespondedTo
}

func (v *CStoreRsp) GetStatus() *Status {
	return &v.Status
}

func (v *CStoreRsp) String() string {
	return fmt.Sprintf("CStoreRsp{AffectedSOPClassUID:%v MessageIDBeingRespondedTo:%v CommandDataSetType:%v AffectedSOPInstanceUID:%v Status:%v}",
		v.AffectedSOPClassUID, v.MessageIDBeingRespondedTo, v.CommandDataSetType, v.AffectedSOPInstanceUID, v.Status)
}

func (CStoreRsp) decode(d *MessageDecoder) (*CStoreRsp, error) {
	r := d.reader("cStoreRsp")
	v := &CStoreRsp{}
	v.AffectedSOPClassUID = r.str(commandset.AffectedSOPClassUID, "AffectedSOPClassUID", RequiredElement)
	v.MessageIDBeingRespondedTo = r.u16(commandset.MessageIDBeingRespondedTo, "MessageIDBeingRespondedTo", RequiredElement)
	v.CommandDataSetType = r.dataSetType()
	v.AffectedSOPInstanceUID = r.str(commandset.AffectedSOPInstanceUID, "AffectedSOPInstanceUID", RequiredElement)
	v.Status = r.status()
	if r.err != nil {
		return nil, r.err
	}
	v.Extra = d.UnparsedElements()
	return v, nil
}
