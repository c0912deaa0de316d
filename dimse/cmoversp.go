package dimse

import (
	"fmt"
	"io"

	"github.com/giesekow/go-dcmnet/commandset"
	"github.com/giesekow/go-dcmnet/dataset"
)

// CMoveRsp is the C-MOVE-RSP command. P3.7 9.3.4.2.
// Pending responses report progress in SubOperations; the final one
// carries the totals.
type CMoveRsp struct {
	AffectedSOPClassUID       string
	MessageIDBeingRespondedTo MessageID
	CommandDataSetType        CommandDataSetType
	SubOperations             SubOperations
	Status                    Status
	Extra                     []*dataset.Element // Unparsed elements
}

func (v *CMoveRsp) Encode(e io.Writer) error {
	l := newElementList("CMoveRsp")
	l.add(commandset.CommandField, v.CommandField())
	l.add(commandset.AffectedSOPClassUID, v.AffectedSOPClassUID)
	l.add(commandset.MessageIDBeingRespondedTo, v.MessageIDBeingRespondedTo)
	l.add(commandset.CommandDataSetType, uint16(v.CommandDataSetType))
	v.SubOperations.add(l)
	l.addStatus(&v.Status)
	return l.encode(e, v.Extra)
}

func (v *CMoveRsp) HasData() bool {
	return v.CommandDataSetType != CommandDataSetTypeNull
}

func (v *CMoveRsp) CommandField() uint16 {
	return CommandFieldCMoveRsp
}

func (v *CMoveRsp) GetMessageID() MessageID {
	return v.MessageIDBeingRespondedTo
}

func (v *CMoveRsp) GetStatus() *Status {
	return &v.Status
}

func (v *CMoveRsp) String() string {
	return fmt.Sprintf("CMoveRsp{AffectedSOPClassUID:%v MessageIDBeingRespondedTo:%v CommandDataSetType:%v SubOperations:{%v} Status:%v}",
		v.AffectedSOPClassUID, v.MessageIDBeingRespondedTo, v.CommandDataSetType, v.SubOperations, v.Status)
}

func (CMoveRsp) decode(d *MessageDecoder) (*CMoveRsp, error) {
	r := d.reader("cMoveRsp")
	v := &CMoveRsp{}
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
