package dimse

import (
	"fmt"
	"io"

	"github.com/giesekow/go-dcmnet/commandset"
	"github.com/giesekow/go-dcmnet/dataset"
)

// CEchoRsp is the C-ECHO-RSP command. P3.7 9.3.5.2.
type CEchoRsp struct {
	AffectedSOPClassUID       string
	MessageIDBeingRespondedTo MessageID
	CommandDataSetType        CommandDataSetType
	Status                    Status
	Extra                     []*dataset.Element // Unparsed elements
}

func (v *CEchoRsp) Encode(e io.Writer) error {
	l := newElementList("CEchoRsp")
	l.add(commandset.CommandField, v.CommandField())
	l.addIf(v.AffectedSOPClassUID != "", commandset.AffectedSOPClassUID, v.AffectedSOPClassUID)
	l.add(commandset.MessageIDBeingRespondedTo, v.MessageIDBeingRespondedTo)
	l.add(commandset.CommandDataSetType, uint16(v.CommandDataSetType))
	l.addStatus(&v.Status)
	return l.encode(e, v.Extra)
}

func (v *CEchoRsp) HasData() bool {
	return v.CommandDataSetType != CommandDataSetTypeNull
}

func (v *CEchoRsp) CommandField() uint16 {
	return CommandFieldCEchoRsp
}

func (v *CEchoRsp) GetMessageID() MessageID {
	return v.MessageIDBeingRespondedTo
}

func (v *CEchoRsp) GetStatus() *Status {
	return &v.Status
}

func (v *CEchoRsp) String() string {
	return fmt.Sprintf("CEchoRsp{MessageIDBeingRespondedTo:%v CommandDataSetType:%v Status:%v}", v.MessageIDBeingRespondedTo, v.CommandDataSetType, v.Status)
}

func (CEchoRsp) decode(d *MessageDecoder) (*CEchoRsp, error) {
	r := d.reader("cEchoRsp")
	v := &CEchoRsp{}
	v.AffectedSOPClassUID = r.str(commandset.AffectedSOPClassUID, "AffectedSOPClassUID", OptionalElement)
	v.MessageIDBeingRespondedTo = r.u16(commandset.MessageIDBeingRespondedTo, "MessageIDBeingRespondedTo", RequiredElement)
	v.CommandDataSetType = r.dataSetType()
	v.Status = r.status()
	if r.err != nil {
		return nil, r.err
	}
	v.Extra = d.UnparsedElements()
	return v, nil
}
