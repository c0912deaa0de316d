package dataset

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/giesekow/go-dcmnet/tag"
)

// ValueType names the family a Value belongs to.
type ValueType int

const (
	Strings ValueType = iota
	Ints
	Floats
	Tags
	Bytes
	Sequence
	Fragments
)

func (t ValueType) String() string {
	switch t {
	case Strings:
		return "Strings"
	case Ints:
		return "Ints"
	case Floats:
		return "Floats"
	case Tags:
		return "Tags"
	case Bytes:
		return "Bytes"
	case Sequence:
		return "Sequence"
	case Fragments:
		return "Fragments"
	}
	return fmt.Sprintf("ValueType(%d)", int(t))
}

// Value holds the value(s) of one element. GetValue returns one of
// []string, []int64, []float64, []tag.Tag, []byte, []*DataSet or
// *EncapsulatedFragments depending on ValueType.
type Value interface {
	ValueType() ValueType
	GetValue() any
	String() string
	equal(Value) bool
}

// EncapsulatedFragments is the value of undefined-length pixel data: a basic
// offset table followed by compressed fragments.
type EncapsulatedFragments struct {
	OffsetTable []uint32
	Fragments   [][]byte
}

type stringsValue struct{ value []string }
type intsValue struct{ value []int64 }
type floatsValue struct{ value []float64 }
type tagsValue struct{ value []tag.Tag }
type bytesValue struct{ value []byte }
type sequenceValue struct{ value []*DataSet }
type fragmentsValue struct{ value *EncapsulatedFragments }

func (v *stringsValue) ValueType() ValueType   { return Strings }
func (v *intsValue) ValueType() ValueType      { return Ints }
func (v *floatsValue) ValueType() ValueType    { return Floats }
func (v *tagsValue) ValueType() ValueType      { return Tags }
func (v *bytesValue) ValueType() ValueType     { return Bytes }
func (v *sequenceValue) ValueType() ValueType  { return Sequence }
func (v *fragmentsValue) ValueType() ValueType { return Fragments }

func (v *stringsValue) GetValue() any   { return v.value }
func (v *intsValue) GetValue() any      { return v.value }
func (v *floatsValue) GetValue() any    { return v.value }
func (v *tagsValue) GetValue() any      { return v.value }
func (v *bytesValue) GetValue() any     { return v.value }
func (v *sequenceValue) GetValue() any  { return v.value }
func (v *fragmentsValue) GetValue() any { return v.value }

func (v *stringsValue) String() string { return fmt.Sprintf("%q", v.value) }
func (v *intsValue) String() string    { return fmt.Sprint(v.value) }
func (v *floatsValue) String() string  { return fmt.Sprint(v.value) }
func (v *tagsValue) String() string    { return fmt.Sprint(v.value) }

func (v *bytesValue) String() string {
	if len(v.value) > 16 {
		return fmt.Sprintf("[%d bytes: % x ...]", len(v.value), v.value[:16])
	}
	return fmt.Sprintf("[%d bytes: % x]", len(v.value), v.value)
}

func (v *sequenceValue) String() string {
	return fmt.Sprintf("[%d items]", len(v.value))
}

func (v *fragmentsValue) String() string {
	return fmt.Sprintf("[offsets:%d fragments:%d]", len(v.value.OffsetTable), len(v.value.Fragments))
}

func (v *stringsValue) equal(o Value) bool {
	ov, ok := o.(*stringsValue)
	if !ok || len(v.value) != len(ov.value) {
		return false
	}
	for i := range v.value {
		if v.value[i] != ov.value[i] {
			return false
		}
	}
	return true
}

func (v *intsValue) equal(o Value) bool {
	ov, ok := o.(*intsValue)
	if !ok || len(v.value) != len(ov.value) {
		return false
	}
	for i := range v.value {
		if v.value[i] != ov.value[i] {
			return false
		}
	}
	return true
}

func (v *floatsValue) equal(o Value) bool {
	ov, ok := o.(*floatsValue)
	if !ok || len(v.value) != len(ov.value) {
		return false
	}
	for i := range v.value {
		a, b := v.value[i], ov.value[i]
		if a != b && !(math.IsNaN(a) && math.IsNaN(b)) {
			return false
		}
	}
	return true
}

func (v *tagsValue) equal(o Value) bool {
	ov, ok := o.(*tagsValue)
	if !ok || len(v.value) != len(ov.value) {
		return false
	}
	for i := range v.value {
		if v.value[i] != ov.value[i] {
			return false
		}
	}
	return true
}

func (v *bytesValue) equal(o Value) bool {
	ov, ok := o.(*bytesValue)
	return ok && bytes.Equal(v.value, ov.value)
}

func (v *sequenceValue) equal(o Value) bool {
	ov, ok := o.(*sequenceValue)
	if !ok || len(v.value) != len(ov.value) {
		return false
	}
	for i := range v.value {
		if !v.value[i].Equal(ov.value[i]) {
			return false
		}
	}
	return true
}

func (v *fragmentsValue) equal(o Value) bool {
	ov, ok := o.(*fragmentsValue)
	if !ok || len(v.value.OffsetTable) != len(ov.value.OffsetTable) || len(v.value.Fragments) != len(ov.value.Fragments) {
		return false
	}
	for i := range v.value.OffsetTable {
		if v.value.OffsetTable[i] != ov.value.OffsetTable[i] {
			return false
		}
	}
	for i := range v.value.Fragments {
		if !bytes.Equal(v.value.Fragments[i], ov.value.Fragments[i]) {
			return false
		}
	}
	return true
}

// NewValue wraps data in the Value family that vr requires. Accepted Go
// types are:
//
//	text VRs:      string, []string
//	integer VRs:   int, int64, uint16, uint32 and slices of them
//	float VRs:     float32, float64 and slices of them
//	AT:            tag.Tag, []tag.Tag
//	binary VRs:    []byte
//	SQ:            []*DataSet, *DataSet
//	OB/OW:         *EncapsulatedFragments as well
func NewValue(vr VR, data any) (Value, error) {
	info, ok := vrTable[vr]
	if !ok {
		return nil, fmt.Errorf("NewValue: unknown VR %q: %w", vr, ErrInvalidValue)
	}
	mismatch := func() error {
		return fmt.Errorf("NewValue: value of type %T is not valid for VR %s: %w", data, vr, ErrInvalidValue)
	}
	switch info.kind {
	case kindText:
		switch v := data.(type) {
		case string:
			if v == "" {
				return &stringsValue{value: []string{}}, nil
			}
			if info.multiValued && strings.Contains(v, `\`) {
				return nil, fmt.Errorf("NewValue: value %q contains the multi-value separator; pass a []string: %w", v, ErrInvalidValue)
			}
			return &stringsValue{value: []string{v}}, nil
		case []string:
			if !info.multiValued && len(v) > 1 {
				return nil, fmt.Errorf("NewValue: VR %s is single-valued, got %d values: %w", vr, len(v), ErrInvalidValue)
			}
			if info.multiValued {
				for _, s := range v {
					if strings.Contains(s, `\`) {
						return nil, fmt.Errorf("NewValue: value %q contains the multi-value separator: %w", s, ErrInvalidValue)
					}
				}
			}
			return &stringsValue{value: append([]string{}, v...)}, nil
		}
		return nil, mismatch()
	case kindInts:
		ints, ok := toInt64s(data)
		if !ok {
			return nil, mismatch()
		}
		for _, i := range ints {
			if !intFits(info, i) {
				return nil, fmt.Errorf("NewValue: %d out of range for VR %s: %w", i, vr, ErrInvalidValue)
			}
		}
		return &intsValue{value: ints}, nil
	case kindFloats:
		switch v := data.(type) {
		case float64:
			return &floatsValue{value: []float64{v}}, nil
		case float32:
			return &floatsValue{value: []float64{float64(v)}}, nil
		case []float64:
			return &floatsValue{value: append([]float64{}, v...)}, nil
		case []float32:
			f := make([]float64, len(v))
			for i := range v {
				f[i] = float64(v[i])
			}
			return &floatsValue{value: f}, nil
		}
		return nil, mismatch()
	case kindTags:
		switch v := data.(type) {
		case tag.Tag:
			return &tagsValue{value: []tag.Tag{v.Untagged()}}, nil
		case []tag.Tag:
			t := make([]tag.Tag, len(v))
			for i := range v {
				t[i] = v[i].Untagged()
			}
			return &tagsValue{value: t}, nil
		}
		return nil, mismatch()
	case kindBytes:
		switch v := data.(type) {
		case []byte:
			return &bytesValue{value: append([]byte{}, v...)}, nil
		case *EncapsulatedFragments:
			if vr != OB && vr != OW {
				return nil, mismatch()
			}
			return &fragmentsValue{value: v}, nil
		}
		return nil, mismatch()
	case kindSequence:
		switch v := data.(type) {
		case []*DataSet:
			return &sequenceValue{value: append([]*DataSet{}, v...)}, nil
		case *DataSet:
			return &sequenceValue{value: []*DataSet{v}}, nil
		}
		return nil, mismatch()
	}
	return nil, mismatch()
}

func toInt64s(data any) ([]int64, bool) {
	switch v := data.(type) {
	case int:
		return []int64{int64(v)}, true
	case int64:
		return []int64{v}, true
	case uint16:
		return []int64{int64(v)}, true
	case uint32:
		return []int64{int64(v)}, true
	case []int:
		r := make([]int64, len(v))
		for i := range v {
			r[i] = int64(v[i])
		}
		return r, true
	case []int64:
		return append([]int64{}, v...), true
	case []uint16:
		r := make([]int64, len(v))
		for i := range v {
			r[i] = int64(v[i])
		}
		return r, true
	case []uint32:
		r := make([]int64, len(v))
		for i := range v {
			r[i] = int64(v[i])
		}
		return r, true
	}
	return nil, false
}

func intFits(info vrInfo, v int64) bool {
	switch {
	case info.size == 8:
		return true
	case info.unsigned:
		return v >= 0 && v < int64(1)<<(8*info.size)
	default:
		limit := int64(1) << (8*info.size - 1)
		return v >= -limit && v < limit
	}
}
