// Package dimse implements the DIMSE message layer: command sets, their
// encoding in Implicit VR Little Endian, fragmentation into P-DATA-TF PDUs
// and reassembly of inbound fragments. P3.7.
package dimse

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/giesekow/go-dcmnet/commandset"
	"github.com/giesekow/go-dcmnet/dataset"
	"github.com/giesekow/go-dcmnet/tag"
)

// Message defines the common interface for all DIMSE message types.
type Message interface {
	fmt.Stringer // Print human-readable description for debugging.
	// Encode writes the command elements, minus CommandGroupLength, in
	// Implicit VR Little Endian.
	Encode(io.Writer) error
	// GetMessageID extracts the message ID field.
	GetMessageID() MessageID
	// CommandField returns the command field value of this message.
	CommandField() uint16
	// GetStatus returns the the response status value. It is nil for request message
	// types, and non-nil for response message types.
	GetStatus() *Status
	// HasData is true if we expect P_DATA_TF packets after the command packets.
	HasData() bool
}

const (
	CommandFieldCStoreRq  uint16 = 0x0001
	CommandFieldCStoreRsp uint16 = 0x8001
	CommandFieldCFindRq   uint16 = 0x0020
	CommandFieldCFindRsp  uint16 = 0x8020
	CommandFieldCGetRq    uint16 = 0x0010
	CommandFieldCGetRsp   uint16 = 0x8010
	CommandFieldCMoveRq   uint16 = 0x0021
	CommandFieldCMoveRsp  uint16 = 0x8021
	CommandFieldCEchoRq   uint16 = 0x0030
	CommandFieldCEchoRsp  uint16 = 0x8030
	CommandFieldCCancelRq uint16 = 0x0FFF
)

type MessageID = uint16

// Priority values for C-STORE, C-FIND, C-GET and C-MOVE requests.
const (
	PriorityMedium uint16 = 0x0000
	PriorityHigh   uint16 = 0x0001
	PriorityLow    uint16 = 0x0002
)

// commandDictionary resolves command tags first so that their VRs do not
// depend on the standard dictionary.
var commandDictionary = tag.Chain{commandset.Dictionary, tag.StandardDictionary}

// NewElement creates a command element, taking the VR from the command set
// dictionary.
func NewElement(t tag.Tag, value any) (*dataset.Element, error) {
	return dataset.NewElementFromDictionary(commandDictionary, t, value)
}

// EncodeElements writes elems, sorted, in Implicit VR Little Endian.
func EncodeElements(out io.Writer, elems []*dataset.Element) error {
	ds := dataset.New(elems...)
	ds.Sort()
	return dataset.NewEncoder(commandDictionary).EncodeTo(out, ds, dataset.ImplicitVRLittleEndian)
}

// ReadMessage converts a decoded command set into a Message.
// CommandGroupLength, if present, is dropped.
func ReadMessage(ds *dataset.DataSet) (message Message, err error) {
	mDecoder := MessageDecoder{
		elements: make(map[tag.Tag]*dataset.Element, ds.Len()),
	}
	for _, elem := range ds.Elements() {
		mDecoder.elements[elem.Tag.Untagged()] = elem
	}
	delete(mDecoder.elements, commandset.CommandGroupLength)
	commandField, err := mDecoder.GetUInt16(commandset.CommandField, RequiredElement)
	if err != nil {
		return nil, fmt.Errorf("ReadMessage: failed to get command field: %w", err)
	}
	return mDecoder.Decode(commandField)
}

// DecodeMessage parses a complete command set, as reassembled from the
// command PDVs of one message.
func DecodeMessage(data []byte) (Message, error) {
	ds, err := dataset.NewDecoder(commandDictionary).Decode(data, dataset.ImplicitVRLittleEndian)
	if err != nil {
		return nil, fmt.Errorf("DecodeMessage: %w", err)
	}
	return ReadMessage(ds)
}

// EncodeMessage serializes the given message. The result always starts with
// CommandGroupLength. DIMSE messages are always encoded Implicit+LE. See
// P3.7 6.3.1.
func EncodeMessage(v Message) ([]byte, error) {
	body := bytes.Buffer{}
	if err := v.Encode(&body); err != nil {
		return nil, fmt.Errorf("EncodeMessage: error encoding message: %w", err)
	}
	element, err := NewElement(commandset.CommandGroupLength, uint32(body.Len()))
	if err != nil {
		return nil, fmt.Errorf("EncodeMessage: failed to create CommandGroupLength element: %w", err)
	}
	out := bytes.Buffer{}
	if err := EncodeElements(&out, []*dataset.Element{element}); err != nil {
		return nil, fmt.Errorf("EncodeMessage: %w", err)
	}
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

// AffectedSOPClassUID returns the SOP class a message operates on, or "" for
// messages that carry none.
func AffectedSOPClassUID(m Message) string {
	switch v := m.(type) {
	case *CEchoRq:
		return v.AffectedSOPClassUID
	case *CEchoRsp:
		return v.AffectedSOPClassUID
	case *CStoreRq:
		return v.AffectedSOPClassUID
	case *CStoreRsp:
		return v.AffectedSOPClassUID
	case *CFindRq:
		return v.AffectedSOPClassUID
	case *CFindRsp:
		return v.AffectedSOPClassUID
	case *CGetRq:
		return v.AffectedSOPClassUID
	case *CGetRsp:
		return v.AffectedSOPClassUID
	case *CMoveRq:
		return v.AffectedSOPClassUID
	case *CMoveRsp:
		return v.AffectedSOPClassUID
	}
	return ""
}

// elementList accumulates the elements of one command. The first error
// sticks and is reported by encode.
type elementList struct {
	name  string
	elems []*dataset.Element
	err   error
}

func newElementList(name string) *elementList {
	return &elementList{name: name}
}

func (l *elementList) add(t tag.Tag, value any) {
	if l.err != nil {
		return
	}
	elem, err := NewElement(t, value)
	if err != nil {
		l.err = fmt.Errorf("%s.Encode: failed to create %v element: %w", l.name, t, err)
		return
	}
	l.elems = append(l.elems, elem)
}

// addIf is add for optional fields.
func (l *elementList) addIf(cond bool, t tag.Tag, value any) {
	if cond {
		l.add(t, value)
	}
}

func (l *elementList) addStatus(s *Status) {
	if l.err != nil {
		return
	}
	elems, err := s.ToElements()
	if err != nil {
		l.err = fmt.Errorf("%s.Encode: %w", l.name, err)
		return
	}
	l.elems = append(l.elems, elems...)
}

func (l *elementList) encode(out io.Writer, extra []*dataset.Element) error {
	if l.err != nil {
		return l.err
	}
	l.elems = append(l.elems, extra...)
	if err := EncodeElements(out, l.elems); err != nil {
		return fmt.Errorf("%s.Encode: %w", l.name, err)
	}
	return nil
}

// sortElements orders unparsed elements so that Extra is deterministic.
func sortElements(elems []*dataset.Element) {
	sort.Slice(elems, func(i, j int) bool { return elems[i].Tag.Less(elems[j].Tag) })
}
