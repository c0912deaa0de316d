package dimse

import (
	"fmt"

	"github.com/giesekow/go-dcmnet/commandset"
	"github.com/giesekow/go-dcmnet/dataset"
	"github.com/giesekow/go-dcmnet/tag"
)

// MessageDecoder is a helper for extracting command fields from decoded
// elements. Each getter consumes the element it reads; what remains is
// returned by UnparsedElements.
type MessageDecoder struct {
	elements map[tag.Tag]*dataset.Element
}

type isOptionalElement int

const (
	RequiredElement isOptionalElement = iota
	OptionalElement
)

type CommandDataSetType uint16

const (
	// CommandDataSetTypeNull indicates that the DIMSE message has no data payload,
	// when set in (0000,0800). Any other value indicates the
	// existence of a payload.
	CommandDataSetTypeNull CommandDataSetType = 0x101

	// CommandDataSetTypeNonNull indicates that the DIMSE message has a data
	// payload, when set in (0000,0800).
	CommandDataSetTypeNonNull CommandDataSetType = 1
)

func (d *MessageDecoder) Decode(commandField uint16) (Message, error) {
	switch commandField {
	case CommandFieldCStoreRq:
		return CStoreRq{}.decode(d)
	case CommandFieldCStoreRsp:
		return CStoreRsp{}.decode(d)
	case CommandFieldCFindRq:
		return CFindRq{}.decode(d)
	case CommandFieldCFindRsp:
		return CFindRsp{}.decode(d)
	case CommandFieldCGetRq:
		return CGetRq{}.decode(d)
	case CommandFieldCGetRsp:
		return CGetRsp{}.decode(d)
	case CommandFieldCMoveRq:
		return CMoveRq{}.decode(d)
	case CommandFieldCMoveRsp:
		return CMoveRsp{}.decode(d)
	case CommandFieldCEchoRq:
		return CEchoRq{}.decode(d)
	case CommandFieldCEchoRsp:
		return CEchoRsp{}.decode(d)
	case CommandFieldCCancelRq:
		return CCancelRq{}.decode(d)
	default:
		return nil, fmt.Errorf("unknown DIMSE command 0x%x", commandField)
	}
}

// UnparsedElements returns the elements no getter consumed, in tag order.
func (d *MessageDecoder) UnparsedElements() []*dataset.Element {
	if len(d.elements) == 0 {
		return nil
	}
	elems := make([]*dataset.Element, 0, len(d.elements))
	for _, elem := range d.elements {
		elems = append(elems, elem)
	}
	sortElements(elems)
	return elems
}

func (d *MessageDecoder) GetStatus() (s Status, err error) {
	statusCode, err := d.GetUInt16(commandset.Status, RequiredElement)
	if err != nil {
		return s, fmt.Errorf("GetStatus: failed to get status code: %w", err)
	}
	s.Status = StatusCode(statusCode)
	s.ErrorComment, err = d.GetString(commandset.ErrorComment, OptionalElement)
	if err != nil {
		return s, fmt.Errorf("GetStatus: failed to get error comment: %w", err)
	}
	return s, nil
}

func (d *MessageDecoder) GetCommandDataSetType() (CommandDataSetType, error) {
	cmdDataSetType, err := d.GetUInt16(commandset.CommandDataSetType, RequiredElement)
	if err != nil {
		return CommandDataSetTypeNull, fmt.Errorf("GetCommandDataSetType: failed to get command data set type: %w", err)
	}
	return CommandDataSetType(cmdDataSetType), nil
}

func (d *MessageDecoder) GetString(t tag.Tag, optional isOptionalElement) (string, error) {
	elem := d.elements[t]
	if elem == nil {
		if optional == RequiredElement {
			return "", fmt.Errorf("GetString: tag %s not found", t)
		}
		return "", nil
	}
	if elem.Value == nil || elem.Value.ValueType() != dataset.Strings {
		return "", fmt.Errorf("GetString: element %s is not a string", t)
	}
	delete(d.elements, t)
	v := elem.Strings()
	if len(v) == 0 {
		return "", nil
	}
	return v[0], nil
}

// GetUInt16 finds the element with tag t and extracts a uint16 from it.
func (d *MessageDecoder) GetUInt16(t tag.Tag, optional isOptionalElement) (uint16, error) {
	elem := d.elements[t]
	if elem == nil {
		if optional == RequiredElement {
			return 0, fmt.Errorf("GetUInt16: tag %s not found", t)
		}
		return 0, nil
	}
	if elem.Value == nil || elem.Value.ValueType() != dataset.Ints {
		return 0, fmt.Errorf("GetUInt16: element %s is not an int", t)
	}
	v := elem.Ints()
	if len(v) == 0 {
		if optional == RequiredElement {
			return 0, fmt.Errorf("GetUInt16: tag %s is empty", t)
		}
		delete(d.elements, t)
		return 0, nil
	}
	if v[0] < 0 || v[0] > 0xFFFF {
		return 0, fmt.Errorf("GetUInt16: value %v is out of range for uint16", v)
	}
	delete(d.elements, t)
	return uint16(v[0]), nil
}

// fieldReader wraps the getters for one message type. The first error
// sticks; later reads return zero values.
type fieldReader struct {
	d    *MessageDecoder
	name string
	err  error
}

func (d *MessageDecoder) reader(name string) *fieldReader {
	return &fieldReader{d: d, name: name}
}

func (r *fieldReader) fail(field string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%s.decode: failed to decode %s: %w", r.name, field, err)
	}
}

func (r *fieldReader) str(t tag.Tag, field string, optional isOptionalElement) string {
	if r.err != nil {
		return ""
	}
	v, err := r.d.GetString(t, optional)
	if err != nil {
		r.fail(field, err)
	}
	return v
}

func (r *fieldReader) u16(t tag.Tag, field string, optional isOptionalElement) uint16 {
	if r.err != nil {
		return 0
	}
	v, err := r.d.GetUInt16(t, optional)
	if err != nil {
		r.fail(field, err)
	}
	return v
}

func (r *fieldReader) dataSetType() CommandDataSetType {
	if r.err != nil {
		return CommandDataSetTypeNull
	}
	v, err := r.d.GetCommandDataSetType()
	if err != nil {
		r.fail("CommandDataSetType", err)
	}
	return v
}

func (r *fieldReader) status() Status {
	if r.err != nil {
		return Status{}
	}
	v, err := r.d.GetStatus()
	if err != nil {
		r.fail("Status", err)
	}
	return v
}
