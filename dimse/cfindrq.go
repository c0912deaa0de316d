package dimse

import (
	"fmt"
	"io"

	"github.com/giesekow/go-dcmnet/commandset"
	"github.com/giesekow/go-dcmnet/dataset"
)

// CFindRq is the C-FIND-RQ command. P3.7 9.3.2.1. The query identifier
// travels as the data set.
type CFindRq struct {
	AffectedSOPClassUID string
	MessageID           MessageID
	Priority            uint16
	CommandDataSetType  CommandDataSetType
	Extra               []*dataset.Element // Unparsed elements
}

func (v *CFindRq) Encode(e io.Writer) error {
	l := newElementList("CFindRq")
	l.add(commandset.CommandField, v.CommandField())
	l.add(commandset.AffectedSOPClassUID, v.AffectedSOPClassUID)
	l.add(commandset.MessageID, v.MessageID)
	l.add(commandset.Priority, v.Priority)
	l.add(commandset.CommandDataSetType, uint16(v.CommandDataSetType))
	return l.encode(e, v.Extra)
}

func (v *CFindRq) HasData() bool {
	return v.CommandDataSetType != CommandDataSetTypeNull
}

func (v *CFindRq) CommandField() uint16 {
	return CommandFieldCFindRq
}

func (v *CFindRq) GetMessageID() MessageID {
	return v.MessageID
}

func (v *CFindRq) GetStatus() *Status {
	return nil
}

func (v *CFindRq) String() string {
	return fmt.Sprintf("CFindRq{AffectedSOPClassUID:%v MessageID:%v Priority:%v CommandDataSetType:%v}", v.AffectedSOPClassUID, v.MessageID, v.Priority, v.CommandDataSetType)
}

func (CFindRq) decode(d *MessageDecoder) (*CFindRq, error) {
	r := d.reader("cFindRq")
	v := &CFindRq{}
	v.AffectedSOPClassUID = r.str(commandset.AffectedSOPClassUID, "AffectedSOPClassUID", RequiredElement)
	v.MessageID = r.u16(commandset.MessageID, "MessageID", RequiredElement)
	v.Priority = r.u16(commandset.Priority, "Priority", RequiredElement)
	v.CommandDataSetType = r.dataSetType()
	if r.err != nil {
		return nil, r.err
	}
	v.Extra = d.UnparsedElements()
	return v, nil
}
