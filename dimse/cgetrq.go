package dimse

import (
	"fmt"
	"io"

	"github.com/giesekow/go-dcmnet/commandset"
	"github.com/giesekow/go-dcmnet/dataset"
)

// CGetRq is the C-GET-RQ command. P3.7 9.3.3.1.
type CGetRq struct {
	AffectedSOPClassUID string
	MessageID           MessageID
	Priority            uint16
	CommandDataSetType  CommandDataSetType
	Extra               []*dataset.Element // Unparsed elements
}

func (v *CGetRq) Encode(e io.Writer) error {
	l := newElementList("CGetRq")
	l.add(commandset.CommandField, v.CommandField())
	l.add(commandset.AffectedSOPClassUID, v.AffectedSOPClassUID)
	l.add(commandset.MessageID, v.MessageID)
	l.add(commandset.Priority, v.Priority)
	l.add(commandset.CommandDataSetType, uint16(v.CommandDataSetType))
	return l.encode(e, v.Extra)
}

func (v *CGetRq) HasData() bool {
	return v.CommandDataSetType != CommandDataSetTypeNull
}

func (v *CGetRq) CommandField() uint16 {
	return CommandFieldCGetRq
}

func (v *CGetRq) GetMessageID() MessageID {
	return v.MessageID
}

func (v *CGetRq) GetStatus() *Status {
	return nil
}

func (v *CGetRq) String() string {
	return fmt.Sprintf("CGetRq{AffectedSOPClassUID:%v MessageID:%v Priority:%v CommandDataSetType:%v}", v.AffectedSOPClassUID, v.MessageID, v.Priority, v.CommandDataSetType)
}

func (CGetRq) decode(d *MessageDecoder) (*CGetRq, error) {
	r := d.reader("cGetRq")
	v := &CGetRq{}
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
