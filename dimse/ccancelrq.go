package dimse

import (
	"fmt"
	"io"

	"github.com/giesekow/go-dcmnet/commandset"
	"github.com/giesekow/go-dcmnet/dataset"
)

// CCancelRq is the C-CANCEL-RQ command. It asks the peer to stop the
// C-FIND, C-GET or C-MOVE whose ID is MessageIDBeingRespondedTo. P3.7 9.3.2.3.
type CCancelRq struct {
	MessageIDBeingRespondedTo MessageID
	CommandDataSetType        CommandDataSetType
	Extra                     []*dataset.Element // Unparsed elements
}

func (v *CCancelRq) Encode(e io.Writer) error {
	l := newElementList("CCancelRq")
	l.add(commandset.CommandField, v.CommandField())
	l.add(commandset.MessageIDBeingRespondedTo, v.MessageIDBeingRespondedTo)
	l.add(commandset.CommandDataSetType, uint16(v.CommandDataSetType))
	return l.encode(e, v.Extra)
}

func (v *CCancelRq) HasData() bool {
	return v.CommandDataSetType != CommandDataSetTypeNull
}

func (v *CCancelRq) CommandField() uint16 {
	return CommandFieldCCancelRq
}

func (v *CCancelRq) GetMessageID() MessageID {
	return v.MessageIDBeingRespondedTo
}

func (v *CCancelRq) GetStatus() *Status {
	return nil
}

func (v *CCancelRq) String() string {
	return fmt.Sprintf("CCancelRq{MessageIDBeingRespondedTo:%v CommandDataSetType:%v}", v.MessageIDBeingRespondedTo, v.CommandDataSetType)
}

func (CCancelRq) decode(d *MessageDecoder) (*CCancelRq, error) {
	r := d.reader("cCancelRq")
	v := &CCancelRq{}
	v.MessageIDBeingRespondedTo = r.u16(commandset.MessageIDBeingRespondedTo, "MessageIDBeingRespondedTo", RequiredElement)
	v.CommandDataSetType = r.dataSetType()
	if r.err != nil {
		return nil, r.err
	}
	v.Extra = d.UnparsedElements()
	return v, nil
}
