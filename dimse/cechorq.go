package dimse

import (
	"fmt"
	"io"

	"github.com/giesekow/go-dcmnet/commandset"
	"github.com/giesekow/go-dcmnet/dataset"
)

// CEchoRq is the C-ECHO-RQ command. P3.7 9.3.5.1.
type CEchoRq struct {
	AffectedSOPClassUID string
	MessageID           MessageID
	CommandDataSetType  CommandDataSetType
	Extra               []*dataset.Element // Unparsed elements
}

func (v *CEchoRq) Encode(e io.Writer) error {
	l := newElementList("CEchoRq")
	l.add(commandset.CommandField, v.CommandField())
	l.addIf(v.AffectedSOPClassUID != "", commandset.AffectedSOPClassUID, v.AffectedSOPClassUID)
	l.add(commandset.MessageID, v.MessageID)
	l.add(commandset.CommandDataSetType, uint16(v.CommandDataSetType))
	return l.encode(e, v.Extra)
}

func (v *CEchoRq) HasData() bool {
	return v.CommandDataSetType != CommandDataSetTypeNull
}

func (v *CEchoRq) CommandField() uint16 {
	return CommandFieldCEchoRq
}

func (v *CEchoRq) GetMessageID() MessageID {
	return v.MessageID
}

func (v *CEchoRq) GetStatus() *Status {
	return nil
}

func (v *CEchoRq) String() string {
	return fmt.Sprintf("CEchoRq{AffectedSOPClassUID:%v MessageID:%v CommandDataSetType:%v}", v.AffectedSOPClassUID, v.MessageID, v.CommandDataSetType)
}

func (CEchoRq) decode(d *MessageDecoder) (*CEchoRq, error) {
	r := d.reader("cEchoRq")
	v := &CEchoRq{}
	// Some peers omit the SOP class on C-ECHO.
	v.AffectedSOPClassUID = r.str(commandset.AffectedSOPClassUID, "AffectedSOPClassUID", OptionalElement)
	v.MessageID = r.u16(commandset.MessageID, "MessageID", RequiredElement)
	v.CommandDataSetType = r.dataSetType()
	if r.err != nil {
		return nil, r.err
	}
	v.Extra = d.UnparsedElements()
	return v, nil
}
