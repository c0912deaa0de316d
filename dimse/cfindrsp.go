package dimse

import (
	"fmt"
	"io"

	"github.com/giesekow/go-dcmnet/commandset"
	"github.com/giesekow/go-dcmnet/dataset"
)

// CFindRsp is the C-FIND-RSP command. P3.7 9.3.2.2. Pending responses carry
// one match as the data set; the final response carries none.
type CFindRsp struct {
	AffectedSOPClassUID       string
	MessageIDBeingRespondedTo MessageID
	CommandDataSetType        CommandDataSetType
	Status                    Status
	Extra                     []*dataset.Element // Unparsed elements
}

func (v *CFindRsp) Encode(e io.Writer) error {
	l := newElementList("CFindRsp")
	l.add(commandset.CommandField, v.CommandField())
	l.add(commandset.AffectedSOPClassUID, v.AffectedSOPClassUID)
	l.add(commandset.MessageIDBeingRespondedTo, v.MessageIDBeingRespondedTo)
	l.add(commandset.CommandDataSetType, uint16(v.CommandDataSetType))
	l.addStatus(&v.Status)
	return l.encode(e, v.Extra)
}

func (v *CFindRsp) HasData() bool {
	return v.CommandDataSetType != CommandDataSetTypeNull
}

func (v *CFindRsp) CommandField() uint16 {
	return CommandFieldCFindRsp
}

func (v *CFindRsp) GetMessageID() MessageID {
	return v.MessageIDBeingRespondedTo
}

func (v *CFindRsp) GetStatus() *Status {
	return &v.Status
}

func (v *CFindRsp) String() string {
	return fmt.Sprintf("CFindRsp{AffectedSOPClassUID:%v MessageIDBeingRespondedTo:%v CommandDataSetType:%v Status:%v}",
		v.AffectedSOPClassUID, v.MessageIDBeingRespondedTo, v.CommandDataSetType, v.Status)
}

func (CFindRsp) decode(d *MessageDecoder) (*CFindRsp, error) {
	r := d.reader("cFindRsp")
	v := &CFindRsp{}
	v.AffectedSOPClassUID = r.str(commandset.AffectedSOPClassUID, "AffectedSOPClassUID", RequiredElement)
	v.MessageIDBeingRespondedTo = r.u16(commandset.MessageIDBeingRespondedTo, "MessageIDBeingRespondedTo", RequiredElement)
	v.CommandDataSetType = r.dataSetType()
	v.Status = r.status()
	if r.err != nil {
		return nil, r.err
	}
	v.Extra = d.UnparsedElements()
	return v, nil
}
