// Package dataset holds the in-memory data set model and the codec that reads
// and writes it under a transfer syntax.
package dataset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/giesekow/go-dcmnet/tag"
)

// DataSet is an ordered collection of elements with unique tags. Elements
// keep the order in which they were added or decoded; Sort puts them in the
// ascending tag order the encoder expects.
type DataSet struct {
	elements []*Element
	index    map[uint32]int
}

// New creates a data set holding elems. A later element replaces an earlier
// one with the same tag.
func New(elems ...*Element) *DataSet {
	ds := &DataSet{index: make(map[uint32]int)}
	for _, e := range elems {
		ds.Add(e)
	}
	return ds
}

// Add inserts e, replacing in place any element with the same tag.
func (ds *DataSet) Add(e *Element) {
	if ds.index == nil {
		ds.index = make(map[uint32]int)
	}
	card := e.Tag.Card()
	if i, ok := ds.index[card]; ok {
		ds.elements[i] = e
		return
	}
	ds.index[card] = len(ds.elements)
	ds.elements = append(ds.elements, e)
}

// Put creates an element from data and adds it.
func (ds *DataSet) Put(t tag.Tag, vr VR, data any) error {
	e, err := NewElement(t, vr, data)
	if err != nil {
		return err
	}
	ds.Add(e)
	return nil
}

// Find returns the element with the same (group, element) as t.
func (ds *DataSet) Find(t tag.Tag) (*Element, bool) {
	if ds == nil {
		return nil, false
	}
	i, ok := ds.index[t.Card()]
	if !ok {
		return nil, false
	}
	return ds.elements[i], true
}

// Get is like Find but reports a missing tag as ErrNotFound.
func (ds *DataSet) Get(t tag.Tag) (*Element, error) {
	e, ok := ds.Find(t)
	if !ok {
		return nil, fmt.Errorf("%v: %w", t, ErrNotFound)
	}
	return e, nil
}

// Remove deletes the element with tag t. It reports whether one existed.
func (ds *DataSet) Remove(t tag.Tag) bool {
	i, ok := ds.index[t.Card()]
	if !ok {
		return false
	}
	ds.elements = append(ds.elements[:i], ds.elements[i+1:]...)
	ds.reindex()
	return true
}

func (ds *DataSet) reindex() {
	ds.index = make(map[uint32]int, len(ds.elements))
	for i, e := range ds.elements {
		ds.index[e.Tag.Card()] = i
	}
}

// Len returns the number of top-level elements.
func (ds *DataSet) Len() int {
	if ds == nil {
		return 0
	}
	return len(ds.elements)
}

// Elements returns the elements in their current order. The slice is a copy;
// the elements are not.
func (ds *DataSet) Elements() []*Element {
	if ds == nil {
		return nil
	}
	return append([]*Element{}, ds.elements...)
}

// Sort orders the elements by ascending tag.
func (ds *DataSet) Sort() {
	sort.SliceStable(ds.elements, func(i, j int) bool {
		return ds.elements[i].Tag.Untagged().Less(ds.elements[j].Tag.Untagged())
	})
	ds.reindex()
}

// IsSorted reports whether the elements are in strictly ascending tag order.
func (ds *DataSet) IsSorted() bool {
	for i := 1; i < len(ds.elements); i++ {
		if !ds.elements[i-1].Tag.Untagged().Less(ds.elements[i].Tag.Untagged()) {
			return false
		}
	}
	return true
}

// Equal compares two data sets element by element, recursing into
// sequences.
func (ds *DataSet) Equal(o *DataSet) bool {
	if ds.Len() != o.Len() {
		return false
	}
	for i := range ds.elements {
		if !ds.elements[i].Equal(o.elements[i]) {
			return false
		}
	}
	return true
}

// GetStrings returns the text values of t.
func (ds *DataSet) GetStrings(t tag.Tag) ([]string, error) {
	e, err := ds.Get(t)
	if err != nil {
		return nil, err
	}
	if e.Value == nil || e.Value.ValueType() != Strings {
		return nil, fmt.Errorf("%v: %s is not a text VR: %w", t, e.VR, ErrInvalidValue)
	}
	return e.Strings(), nil
}

// GetString returns the first text value of t, or "" when t has no values.
func (ds *DataSet) GetString(t tag.Tag) (string, error) {
	v, err := ds.GetStrings(t)
	if err != nil {
		return "", err
	}
	if len(v) == 0 {
		return "", nil
	}
	return v[0], nil
}

// GetInt returns the first integer value of t.
func (ds *DataSet) GetInt(t tag.Tag) (int64, error) {
	e, err := ds.Get(t)
	if err != nil {
		return 0, err
	}
	v := e.Ints()
	if v == nil {
		return 0, fmt.Errorf("%v: %s is not an integer VR: %w", t, e.VR, ErrInvalidValue)
	}
	if len(v) == 0 {
		return 0, fmt.Errorf("%v: empty value: %w", t, ErrInvalidValue)
	}
	return v[0], nil
}

// GetUInt16 returns the first value of t as a uint16.
func (ds *DataSet) GetUInt16(t tag.Tag) (uint16, error) {
	v, err := ds.GetInt(t)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > 0xFFFF {
		return 0, fmt.Errorf("%v: %d out of range for uint16: %w", t, v, ErrInvalidValue)
	}
	return uint16(v), nil
}

// GetSequence returns the items of sequence t.
func (ds *DataSet) GetSequence(t tag.Tag) ([]*DataSet, error) {
	e, err := ds.Get(t)
	if err != nil {
		return nil, err
	}
	if e.Value == nil || e.Value.ValueType() != Sequence {
		return nil, fmt.Errorf("%v: %s is not a sequence: %w", t, e.VR, ErrInvalidValue)
	}
	return e.Items(), nil
}

// PrivateCreator returns the creator identifier registered in this data set
// for the block that private tag t belongs to.
func (ds *DataSet) PrivateCreator(t tag.Tag) (string, bool) {
	if !t.IsPrivate() || t.Element < 0x1000 {
		return "", false
	}
	e, ok := ds.Find(t.PrivateCreatorTag())
	if !ok {
		return "", false
	}
	v := e.Strings()
	if len(v) == 0 || v[0] == "" {
		return "", false
	}
	return v[0], true
}

// String dumps the data set, one element per line, items indented.
func (ds *DataSet) String() string {
	var b strings.Builder
	ds.dump(&b, 0)
	return b.String()
}

func (ds *DataSet) dump(b *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, e := range ds.elements {
		fmt.Fprintf(b, "%s%s\n", indent, e.String())
		for i, item := range e.Items() {
			fmt.Fprintf(b, "%s  item #%d\n", indent, i)
			item.dump(b, depth+2)
		}
	}
}
