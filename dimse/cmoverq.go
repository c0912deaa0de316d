package dimse

import (
	"fmt"
	"io"

	"github.com/giesekow/go-dcmnet/commandset"
	"github.com/giesekow/go-dcmnet/dataset"
)

// CMoveRq is the C-MOVE-RQ command. P3.7 9.3.4.1.
type CMoveRq struct {
	AffectedSOPClassUID string
	MessageID           MessageID
	Priority            uint16
	MoveDestination     string
	CommandDataSetType  CommandDataSetType
	Extra               []*dataset.Element // Unparsed elements
}

func (v *CMoveRq) Encode(e io.Writer) error {
	l := newElementList("CMoveRq")
	l.add(commandset.CommandField, v.CommandField())
	l.add(commandset.AffectedSOPClassUID, v.AffectedSOPClassUID)
	l.add(commandset.MessageID, v.MessageID)
	l.add(commandset.Priority, v.Priority)
	l.add(commandset.MoveDestination, v.MoveDestination)
	l.add(commandset.CommandDataSetType, uint16(v.CommandDataSetType))
	return l.encode(e, v.Extra)
}

func (v *CMoveRq) HasData() bool {
	return v.CommandDataSetType != CommandDataSetTypeNull
}

func (v *CMoveRq) CommandField() uint16 {
	return CommandFieldCMoveRq
}

func (v *CMoveRq) GetMessageID() MessageID {
	return v.MessageID
}

func (v *CMoveRq) GetStatus() *Status {
	return nil
}

func (v *CMoveRq) String() string {
	return fmt.Sprintf("CMoveRq{AffectedSOPClassUID:%v MessageID:%v Priority:%v MoveDestination:%v CommandDataSetType:%v}",
		v.AffectedSOPClassUID, v.MessageID, v.Priority, v.MoveDestination, v.CommandDataSetType)
}

func (CMoveRq) decode(d *MessageDecoder) (*CMoveRq, error) {
	r := d.reader("cMoveRq")
	v := &CMoveRq{}
	v.AffectedSOPClassUID = r.str(commandset.AffectedSOPClassUID, "AffectedSOPClassUID", RequiredElement)
	v.MessageID = r.u16(commandset.MessageID, "MessageID", RequiredElement)
	v.Priority = r.u16(commandset.Priority, "Priority", RequiredElement)
	v.MoveDestination = r.str(commandset.MoveDestination, "MoveDestination", RequiredElement)
	v.CommandDataSetType = r.dataSetType()
	if r.err != nil {
		return nil, r.err
	}
	v.Extra = d.UnparsedElements()
	return v, nil
}
