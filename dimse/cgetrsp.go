package dimse

import (
	"fmt"
	"io"

	"github.com/giesekow/go-dcmnet/commandset"
	"github.com/giesekow/go-dcmnet/dataset"
)

// CGetRsp is the C-GET-RSP command. P3.7 9.3.3.2.
// Pending responses report progress in SubOperations; the final one
// carries the totals.
type CGetRsp struct {
	AffectedSOPClassUID       string
	MessageIDBeingRespondedTo MessageID
	CommandDataSetType        CommandDataSetType
	SubOperations             SubOperations
	Status                    Status
	Extra                     []*dataset.Element // Unparsed elements
}

func (v *CGetRsp) Encode(e io.Writer) error {
	l := newElementList("CGetRsp")
	l.add(commandset.CommandField, v.CommandField())
	l.add(commandset.AffectedSOPClassUID, v.AffectedSOPClassUID)
	l.add(commandset.MessageIDBeingRespondedTo, v.MessageIDBeingRespondedTo)
	l.add(commandset.CommandDataSetType, uint16(v.CommandDataSetType))
	v.SubOperations.add(l)
	l.addStatus(&v.Status)
	return l.encode(e, v.Extra)
}

func (v *CGetRsp) HasData() bool {
	return v.CommandDataSetType != CommandDataSetTypeNull
}

func (v *CGetRsp) CommandField() uint16 {
	return CommandFieldCGetRsp
}

func (v *CGetRsp) GetMessageID() MessageID {
	return v.MessageIDBeingRespondedTo
}

func (v *CGetRsp) GetStatus() *Status {
	return &v.Status
}

func (v *CGetRsp) String() string {
	return fmt.Sprintf("CGetRsp{AffectedSOPClassUID:%v MessageIDBeingRespondedTo:%v CommandDataSetType:%v SubOperations:{%v} Status:%v}",
		v.AffectedSOPClassUID, v.MessageIDBeingRespondedTo, v.CommandDataSetType, v.SubOperations, v.Status)
}

func (CGetRsp) decode(d *MessageDecoder) (*CGetRsp, error) {
	r := d.reader("cGetRsp")
	v := &CGetRsp{}
	v.AffectedSOPClassUID = r.str(commandset.AffectedSOPClassUID, "AffectedSOPClassUID", RequiredElement)
	v.MessageIDBeingRespondedTo = r.u16(commandset.MessageIDBeingRespondedTo, "MessageIDBeingRespondedTo", RequiredElement)
	v.CommandDataSetType = r.dataSetType()
	v.SubOperations = r.subOperations()
	v.Status = r.status()
	if r.err != nil {
		return nil, r.err
	}
	v.Extra = d.UnparsedElements()
	return v, nil
}
