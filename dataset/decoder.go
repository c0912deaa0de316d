package dataset

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/giesekow/go-dcmnet/tag"
	"github.com/grailbio/go-dicom/dicomio"
	"github.com/grailbio/go-dicom/dicomlog"
)

// Decoder turns bytes into a DataSet. It holds no per-call state and may be
// shared between goroutines.
type Decoder struct {
	dict tag.Dictionary
	opts decodeOptions
}

// NewDecoder creates a decoder that resolves implicit VRs through dict. A nil
// dict means tag.StandardDictionary.
func NewDecoder(dict tag.Dictionary, opts ...DecodeOption) *Decoder {
	if dict == nil {
		dict = tag.StandardDictionary
	}
	dec := &Decoder{dict: dict}
	for _, opt := range opts {
		opt(&dec.opts)
	}
	return dec
}

// Decode parses data, which must hold exactly one data set, under ts.
func (dec *Decoder) Decode(data []byte, ts TransferSyntax) (*DataSet, error) {
	if ts.Deflated {
		limit := dec.opts.maxInflatedSize
		if limit <= 0 {
			limit = DefaultMaxInflatedSize
		}
		inflated, err := io.ReadAll(io.LimitReader(flate.NewReader(bytes.NewReader(data)), limit+1))
		if err != nil {
			return nil, fmt.Errorf("Decoder.Decode: inflate: %v: %w", err, ErrCorruptStream)
		}
		if int64(len(inflated)) > limit {
			return nil, fmt.Errorf("Decoder.Decode: inflated data set exceeds %d bytes: %w", limit, ErrCorruptStream)
		}
		data = inflated
	}
	d := dicomio.NewBytesDecoder(data, ts.ByteOrder, ts.implicitVR())
	d.PushLimit(int64(len(data)))
	r := &reader{dec: dec, d: d, ts: ts, data: data, end: int64(len(data))}
	ds, err := r.readDataSet(int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("Decoder.Decode(%s): %w", ts.UID, err)
	}
	return ds, nil
}

// DecodeReader reads r to EOF and decodes the result.
func (dec *Decoder) DecodeReader(in io.Reader, ts TransferSyntax) (*DataSet, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("Decoder.DecodeReader: %w", err)
	}
	return dec.Decode(data, ts)
}

// reader is the state of one Decode call.
type reader struct {
	dec *Decoder
	d   *dicomio.Decoder
	ts   TransferSyntax
	data []byte
	end  int64

	// The data set being read and the items enclosing it, outermost
	// first. Private creators are looked up innermost first.
	scopes []*DataSet
}

func (r *reader) privateCreator(t tag.Tag) (string, bool) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if creator, ok := r.scopes[i].PrivateCreator(t); ok {
			return creator, true
		}
	}
	return "", false
}

func (r *reader) pos() int64       { return r.d.BytesRead() }
func (r *reader) remaining() int64 { return r.end - r.pos() }

func (r *reader) corrupt(format string, args ...any) error {
	return fmt.Errorf("offset %d: %s: %w", r.pos(), fmt.Sprintf(format, args...), ErrCorruptStream)
}

func (r *reader) checkError() error {
	if err := r.d.Error(); err != nil {
		return r.corrupt("%v", err)
	}
	return nil
}

func (r *reader) readTag() tag.Tag {
	group := r.d.ReadUInt16()
	element := r.d.ReadUInt16()
	return tag.New(group, element)
}

// peekTag returns the next tag without consuming it.
func (r *reader) peekTag() tag.Tag {
	b := r.data[r.pos():]
	return tag.New(r.ts.ByteOrder.Uint16(b), r.ts.ByteOrder.Uint16(b[2:]))
}

// readDataSet reads elements until end, or until an item delimiter when end
// is negative.
func (r *reader) readDataSet(end int64) (*DataSet, error) {
	ds := New()
	r.scopes = append(r.scopes, ds)
	defer func() { r.scopes = r.scopes[:len(r.scopes)-1] }()
	for {
		if end >= 0 && r.pos() >= end {
			if r.pos() > end {
				return nil, r.corrupt("element overruns its item by %d bytes", r.pos()-end)
			}
			return ds, nil
		}
		if r.remaining() < 8 {
			if end < 0 {
				return nil, r.corrupt("missing item delimitation")
			}
			return nil, r.corrupt("truncated element header")
		}
		if stop := r.dec.opts.stopAt; stop != nil && len(r.scopes) == 1 && r.peekTag().GreaterOrEqual(*stop) {
			return ds, nil
		}
		t := r.readTag()
		switch t {
		case tag.ItemDelimitationItem:
			r.d.ReadUInt32()
			if end >= 0 {
				return nil, r.corrupt("item delimitation inside a defined-length item")
			}
			return ds, r.checkError()
		case tag.Item, tag.SequenceDelimitationItem:
			return nil, r.corrupt("unexpected %v outside a sequence", t)
		}
		elem, err := r.readElement(t)
		if err != nil {
			return nil, err
		}
		if elem != nil {
			ds.Add(elem)
		}
	}
}

func (r *reader) readElement(t tag.Tag) (*Element, error) {
	if t.IsPrivate() && !t.IsPrivateCreator() && !t.IsGroupLength() {
		if creator, ok := r.privateCreator(t); ok {
			t = t.WithCreator(creator)
		}
	}
	var (
		vr     VR
		length uint32
	)
	if r.ts.ExplicitVR {
		if r.remaining() < 4 {
			return nil, r.corrupt("%v: truncated explicit VR header", t)
		}
		raw := r.d.ReadString(2)
		vr = VR(raw)
		info, known := vrTable[vr]
		switch {
		case !known:
			dicomlog.Vprintf(1, "dicom.Decoder: %v: unknown VR %q, reading as UN", t, raw)
			// P3.5 7.1.2: VRs added later use the long form, whose two
			// reserved bytes are zero. A zero here is therefore taken as
			// the long form; a short-form element with an empty value and
			// an unknown VR cannot be told apart and is misread.
			short := r.d.ReadUInt16()
			if short == 0 {
				length = r.d.ReadUInt32()
			} else {
				length = uint32(short)
			}
			vr = UN
		case info.longLength:
			r.d.Skip(2)
			length = r.d.ReadUInt32()
		default:
			length = uint32(r.d.ReadUInt16())
		}
		if r.dec.opts.validateVR {
			r.checkVR(t, vr)
		}
	} else {
		length = r.d.ReadUInt32()
		vr = r.impliedVR(t)
	}
	if err := r.checkError(); err != nil {
		return nil, err
	}
	if length == UndefinedLength {
		return r.readUndefinedLength(t, vr)
	}
	if int64(length) > r.remaining() {
		return nil, r.corrupt("%v: length %d exceeds the remaining %d bytes", t, length, r.remaining())
	}
	if vr == SQ {
		items, err := r.readItems(r.pos() + int64(length))
		if err != nil {
			return nil, err
		}
		return &Element{Tag: t, VR: SQ, Value: &sequenceValue{value: items}}, nil
	}
	if r.dec.opts.skipPixelData && t.Untagged() == tag.PixelData {
		r.d.Skip(int(length))
		return nil, r.checkError()
	}
	raw := r.d.ReadBytes(int(length))
	if err := r.checkError(); err != nil {
		return nil, err
	}
	v, err := decodeValue(vr, raw, r.ts.ByteOrder)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", t, err)
	}
	return &Element{Tag: t, VR: vr, Value: v}, nil
}

func (r *reader) readUndefinedLength(t tag.Tag, vr VR) (*Element, error) {
	switch vr {
	case SQ:
		items, err := r.readItems(-1)
		if err != nil {
			return nil, err
		}
		return &Element{Tag: t, VR: SQ, UndefinedLength: true, Value: &sequenceValue{value: items}}, nil
	case UN:
		// P3.5 6.2.2: an undefined-length UN element holds a sequence
		// encoded in implicit VR little endian.
		saved := r.ts
		r.ts = ImplicitVRLittleEndian
		r.d.PushTransferSyntax(binary.LittleEndian, dicomio.ImplicitVR)
		items, err := r.readItems(-1)
		r.d.PopTransferSyntax()
		r.ts = saved
		if err != nil {
			return nil, err
		}
		return &Element{Tag: t, VR: SQ, UndefinedLength: true, Value: &sequenceValue{value: items}}, nil
	case OB, OW:
		frags, err := r.readFragments()
		if err != nil {
			return nil, err
		}
		if r.dec.opts.skipPixelData && t.Untagged() == tag.PixelData {
			return nil, nil
		}
		return &Element{Tag: t, VR: vr, UndefinedLength: true, Value: &fragmentsValue{value: frags}}, nil
	}
	return nil, r.corrupt("%v: undefined length is not allowed for VR %s", t, vr)
}

// readItems reads sequence items until end, or until the sequence
// delimiter when end is negative.
func (r *reader) readItems(end int64) ([]*DataSet, error) {
	items := []*DataSet{}
	for {
		if end >= 0 && r.pos() >= end {
			if r.pos() > end {
				return nil, r.corrupt("item overruns its sequence by %d bytes", r.pos()-end)
			}
			return items, nil
		}
		if r.remaining() < 8 {
			return nil, r.corrupt("truncated sequence")
		}
		t := r.readTag()
		length := r.d.ReadUInt32()
		if err := r.checkError(); err != nil {
			return nil, err
		}
		switch t {
		case tag.SequenceDelimitationItem:
			if end >= 0 {
				dicomlog.Vprintf(1, "dicom.Decoder: sequence delimiter inside a defined-length sequence at offset %d", r.pos())
				r.d.Skip(int(end - r.pos()))
			}
			return items, r.checkError()
		case tag.Item:
			var (
				item *DataSet
				err  error
			)
			if length == UndefinedLength {
				item, err = r.readDataSet(-1)
			} else {
				if int64(length) > r.remaining() {
					return nil, r.corrupt("item length %d exceeds the remaining %d bytes", length, r.remaining())
				}
				item, err = r.readDataSet(r.pos() + int64(length))
			}
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		default:
			return nil, r.corrupt("unexpected %v inside a sequence", t)
		}
	}
}

func (r *reader) readFragments() (*EncapsulatedFragments, error) {
	frags := &EncapsulatedFragments{}
	first := true
	for {
		if r.remaining() < 8 {
			return nil, r.corrupt("truncated encapsulated pixel data")
		}
		t := r.readTag()
		length := r.d.ReadUInt32()
		if err := r.checkError(); err != nil {
			return nil, err
		}
		switch t {
		case tag.SequenceDelimitationItem:
			return frags, nil
		case tag.Item:
			if length == UndefinedLength || int64(length) > r.remaining() {
				return nil, r.corrupt("bad fragment length %d", length)
			}
			raw := r.d.ReadBytes(int(length))
			if err := r.checkError(); err != nil {
				return nil, err
			}
			if first {
				first = false
				for i := 0; i+4 <= len(raw); i += 4 {
					frags.OffsetTable = append(frags.OffsetTable, r.ts.ByteOrder.Uint32(raw[i:]))
				}
				continue
			}
			frags.Fragments = append(frags.Fragments, raw)
		default:
			return nil, r.corrupt("unexpected %v inside encapsulated pixel data", t)
		}
	}
}

func (r *reader) impliedVR(t tag.Tag) VR {
	switch {
	case t.IsGroupLength():
		return UL
	case t.IsPrivateCreator():
		return LO
	}
	if e, ok := r.dec.dict.Lookup(t); ok {
		return vrFromDictionary(e.VR)
	}
	return UN
}

func (r *reader) checkVR(t tag.Tag, vr VR) {
	if t.IsGroupLength() || t.IsPrivateCreator() {
		return
	}
	e, ok := r.dec.dict.Lookup(t)
	if !ok {
		return
	}
	if want := vrFromDictionary(e.VR); want != UN && want != vr {
		dicomlog.Vprintf(1, "dicom.Decoder: %v (%s): explicit VR %s, dictionary says %s", t, e.Name, vr, want)
	}
}

func decodeValue(vr VR, raw []byte, bo binary.ByteOrder) (Value, error) {
	info := vrTable[vr]
	switch info.kind {
	case kindText:
		s := strings.TrimRight(string(raw), " \x00")
		if s == "" {
			return &stringsValue{value: []string{}}, nil
		}
		if info.multiValued {
			return &stringsValue{value: strings.Split(s, `\`)}, nil
		}
		return &stringsValue{value: []string{s}}, nil
	case kindInts:
		if len(raw)%info.size != 0 {
			return nil, fmt.Errorf("length %d is not a multiple of %d for VR %s: %w", len(raw), info.size, vr, ErrInvalidValue)
		}
		v := make([]int64, len(raw)/info.size)
		for i := range v {
			b := raw[i*info.size:]
			switch vr {
			case US:
				v[i] = int64(bo.Uint16(b))
			case SS:
				v[i] = int64(int16(bo.Uint16(b)))
			case UL:
				v[i] = int64(bo.Uint32(b))
			case SL:
				v[i] = int64(int32(bo.Uint32(b)))
			default:
				v[i] = int64(bo.Uint64(b))
			}
		}
		return &intsValue{value: v}, nil
	case kindFloats:
		if len(raw)%info.size != 0 {
			return nil, fmt.Errorf("length %d is not a multiple of %d for VR %s: %w", len(raw), info.size, vr, ErrInvalidValue)
		}
		v := make([]float64, len(raw)/info.size)
		for i := range v {
			b := raw[i*info.size:]
			if info.size == 4 {
				v[i] = float64(math.Float32frombits(bo.Uint32(b)))
			} else {
				v[i] = math.Float64frombits(bo.Uint64(b))
			}
		}
		return &floatsValue{value: v}, nil
	case kindTags:
		if len(raw)%4 != 0 {
			return nil, fmt.Errorf("length %d is not a multiple of 4 for VR AT: %w", len(raw), ErrInvalidValue)
		}
		v := make([]tag.Tag, len(raw)/4)
		for i := range v {
			v[i] = tag.New(bo.Uint16(raw[i*4:]), bo.Uint16(raw[i*4+2:]))
		}
		return &tagsValue{value: v}, nil
	case kindBytes:
		if bo == binary.BigEndian {
			swapWords(raw, info.size)
		}
		return &bytesValue{value: raw}, nil
	}
	return nil, fmt.Errorf("VR %s has no scalar value: %w", vr, ErrInvalidValue)
}

// swapWords reverses the byte order of each size-byte word in place.
func swapWords(b []byte, size int) {
	if size <= 1 {
		return
	}
	for i := 0; i+size <= len(b); i += size {
		for j, k := i, i+size-1; j < k; j, k = j+1, k-1 {
			b[j], b[k] = b[k], b[j]
		}
	}
}
