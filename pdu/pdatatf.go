package pdu

import (
	"fmt"
	"strings"

	"github.com/grailbio/go-dicom/dicomio"
)

// PresentationDataValueItem is one PDV. P3.8 9.3.5.1 and Annex E.
type PresentationDataValueItem struct {
	// Length: 2 + len(Value)
	ContextID byte

	// P3.8, E.2: the following two fields encode a single byte.
	Command bool // Bit 0: 1 means command, 0 means data
	Last    bool // Bit 1: 1 means last fragment, 0 means not last fragment

	// Payload, either command or data
	Value []byte
}

func readPresentationDataValueItem(d *dicomio.Decoder) PresentationDataValueItem {
	item := PresentationDataValueItem{}
	length := d.ReadUInt32()
	if d.Error() == nil && length < 2 {
		d.SetErrorf("PDV length %d is shorter than its header", length)
		return item
	}
	item.ContextID = d.ReadByte()
	header := d.ReadByte()
	item.Command = header&1 != 0
	item.Last = header&2 != 0
	item.Value = d.ReadBytes(int(length - 2)) // remove contextID and header
	return item
}

func (v *PresentationDataValueItem) write(e *dicomio.Encoder) {
	var header byte
	if v.Command {
		header |= 1
	}
	if v.Last {
		header |= 2
	}
	e.WriteUInt32(uint32(2 + len(v.Value)))
	e.WriteByte(v.ContextID)
	e.WriteByte(header)
	e.WriteBytes(v.Value)
}

func (v *PresentationDataValueItem) String() string {
	return fmt.Sprintf("PresentationDataValue{context: %d, cmd:%v last:%v value: %d bytes}", v.ContextID, v.Command, v.Last, len(v.Value))
}

// PDataTf is the P-DATA-TF PDU. P3.8 9.3.5.
type PDataTf struct {
	Items []PresentationDataValueItem
}

func (PDataTf) Type() Type { return TypePDataTf }

func (PDataTf) Read(d *dicomio.Decoder) (PDU, error) {
	pdu := &PDataTf{}
	for !d.EOF() {
		item := readPresentationDataValueItem(d)
		if err := d.Error(); err != nil {
			return nil, err
		}
		pdu.Items = append(pdu.Items, item)
	}
	if err := d.Error(); err != nil {
		return nil, err
	}
	if len(pdu.Items) == 0 {
		return nil, fmt.Errorf("P_DATA_TF without presentation data values")
	}
	return pdu, nil
}

func (pdu *PDataTf) Write() ([]byte, error) {
	return encodePayload(func(e *dicomio.Encoder) {
		for i := range pdu.Items {
			pdu.Items[i].write(e)
		}
	})
}

func (pdu *PDataTf) String() string {
	var b strings.Builder
	b.WriteString("P_DATA_TF{items: [")
	for i, item := range pdu.Items {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(item.String())
	}
	b.WriteString("]}")
	return b.String()
}
