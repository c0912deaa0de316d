package dataset

import (
	"errors"
	"fmt"

	"github.com/giesekow/go-dcmnet/tag"
)

var (
	// ErrInvalidValue reports a value that cannot be represented under the
	// requested VR or transfer syntax. It never affects association state.
	ErrInvalidValue = errors.New("invalid value")

	// ErrCorruptStream reports input that cannot be parsed past some point,
	// e.g. a length that overruns the remaining bytes.
	ErrCorruptStream = errors.New("corrupt data set stream")

	// ErrNotFound is returned by the DataSet getters for absent tags.
	ErrNotFound = errors.New("element not found")
)

// UndefinedLength is the length sentinel for delimited sequences, items and
// encapsulated pixel data.
const UndefinedLength uint32 = 0xFFFFFFFF

// Element is one data element. It is owned by the DataSet that contains it.
type Element struct {
	Tag tag.Tag
	VR  VR
	// UndefinedLength records that the element was, or should be, encoded
	// with delimiters instead of a byte count. Only SQ and encapsulated
	// pixel data may set it.
	UndefinedLength bool
	Value           Value
}

// NewElement creates an element after checking data against vr. See NewValue
// for the accepted Go types.
func NewElement(t tag.Tag, vr VR, data any) (*Element, error) {
	v, err := NewValue(vr, data)
	if err != nil {
		return nil, fmt.Errorf("NewElement %v: %w", t, err)
	}
	e := &Element{Tag: t, VR: vr, Value: v}
	if v.ValueType() == Fragments {
		e.UndefinedLength = true
	}
	return e, nil
}

// MustNewElement is like NewElement but panics on error.
func MustNewElement(t tag.Tag, vr VR, data any) *Element {
	e, err := NewElement(t, vr, data)
	if err != nil {
		panic(err)
	}
	return e
}

// NewElementFromDictionary creates an element whose VR comes from dict.
func NewElementFromDictionary(dict tag.Dictionary, t tag.Tag, data any) (*Element, error) {
	entry, ok := dict.Lookup(t)
	if !ok {
		return nil, fmt.Errorf("NewElementFromDictionary: tag %v not in dictionary: %w", t, ErrInvalidValue)
	}
	return NewElement(t, vrFromDictionary(entry.VR), data)
}

// Strings returns the text values, or nil for non-text elements.
func (e *Element) Strings() []string {
	if v, ok := e.Value.(*stringsValue); ok {
		return v.value
	}
	return nil
}

// Ints returns the integer values, or nil.
func (e *Element) Ints() []int64 {
	if v, ok := e.Value.(*intsValue); ok {
		return v.value
	}
	return nil
}

// Floats returns the FL/FD values, or nil.
func (e *Element) Floats() []float64 {
	if v, ok := e.Value.(*floatsValue); ok {
		return v.value
	}
	return nil
}

// Tags returns the AT values, or nil.
func (e *Element) Tags() []tag.Tag {
	if v, ok := e.Value.(*tagsValue); ok {
		return v.value
	}
	return nil
}

// Bytes returns binary data, or nil. Words wider than one byte are in little
// endian regardless of the transfer syntax the element was read with.
func (e *Element) Bytes() []byte {
	if v, ok := e.Value.(*bytesValue); ok {
		return v.value
	}
	return nil
}

// Items returns the items of a sequence, or nil.
func (e *Element) Items() []*DataSet {
	if v, ok := e.Value.(*sequenceValue); ok {
		return v.value
	}
	return nil
}

// Fragments returns encapsulated pixel data, or nil.
func (e *Element) Fragments() *EncapsulatedFragments {
	if v, ok := e.Value.(*fragmentsValue); ok {
		return v.value
	}
	return nil
}

// Equal compares tag, VR and value. The length encoding and the resolved
// private creator are not part of the comparison.
func (e *Element) Equal(o *Element) bool {
	if e == nil || o == nil {
		return e == o
	}
	if e.Tag.Untagged() != o.Tag.Untagged() || e.VR != o.VR {
		return false
	}
	if e.Value == nil || o.Value == nil {
		return e.Value == nil && o.Value == nil
	}
	return e.Value.equal(o.Value)
}

func (e *Element) String() string {
	var v string
	if e.Value != nil {
		v = e.Value.String()
	}
	return fmt.Sprintf("%v %s %s", e.Tag, e.VR, v)
}
