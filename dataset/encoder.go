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
)

// Encoder turns a DataSet into bytes. Like Decoder it may be shared.
type Encoder struct {
	dict tag.Dictionary
	opts encodeOptions
}

// NewEncoder creates an encoder. dict supplies the VR of elements that were
// built without one; nil means tag.StandardDictionary.
func NewEncoder(dict tag.Dictionary, opts ...EncodeOption) *Encoder {
	if dict == nil {
		dict = tag.StandardDictionary
	}
	enc := &Encoder{dict: dict}
	for _, opt := range opts {
		opt(&enc.opts)
	}
	return enc
}

// Encode serializes ds under ts. Tags must be in ascending order unless the
// encoder was created with AllowUnsortedTags.
func (enc *Encoder) Encode(ds *DataSet, ts TransferSyntax) ([]byte, error) {
	e := dicomio.NewBytesEncoder(ts.ByteOrder, ts.implicitVR())
	w := &writer{enc: enc, ts: ts}
	if err := w.writeDataSet(e, ds); err != nil {
		return nil, fmt.Errorf("Encoder.Encode(%s): %w", ts.UID, err)
	}
	if err := e.Error(); err != nil {
		return nil, fmt.Errorf("Encoder.Encode(%s): %w", ts.UID, err)
	}
	data := e.Bytes()
	if !ts.Deflated {
		return data, nil
	}
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("Encoder.Encode: deflate: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, fmt.Errorf("Encoder.Encode: deflate: %w", err)
	}
	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("Encoder.Encode: deflate: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeTo encodes ds and writes the result to out.
func (enc *Encoder) EncodeTo(out io.Writer, ds *DataSet, ts TransferSyntax) error {
	data, err := enc.Encode(ds, ts)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

type writer struct {
	enc *Encoder
	ts  TransferSyntax
}

func (w *writer) writeDataSet(e *dicomio.Encoder, ds *DataSet) error {
	if !w.enc.opts.allowUnsorted && !ds.IsSorted() {
		return fmt.Errorf("tags are not in ascending order: %w", ErrInvalidValue)
	}
	for _, elem := range ds.elements {
		if err := w.writeElement(e, elem); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) undefinedLength(elem *Element) bool {
	switch w.enc.opts.lengthPolicy {
	case DefinedLengths:
		return false
	case UndefinedLengths:
		return true
	}
	return elem.UndefinedLength
}

func (w *writer) newEncoder() *dicomio.Encoder {
	return dicomio.NewBytesEncoder(w.ts.ByteOrder, w.ts.implicitVR())
}

func (w *writer) writeElement(e *dicomio.Encoder, elem *Element) error {
	t := elem.Tag
	if t.Group == 0xFFFE {
		return fmt.Errorf("%v: delimitation tags cannot be stored as elements: %w", t, ErrInvalidValue)
	}
	vr := elem.VR
	if vr == "" {
		vr = UN
		if entry, ok := w.enc.dict.Lookup(t); ok {
			vr = vrFromDictionary(entry.VR)
		}
	}
	switch v := elem.Value.(type) {
	case *sequenceValue:
		if vr != SQ {
			return fmt.Errorf("%v: sequence value with VR %s: %w", t, vr, ErrInvalidValue)
		}
		if w.undefinedLength(elem) {
			w.writeHeader(e, t, SQ, UndefinedLength)
			for _, item := range v.value {
				writeTag(e, tag.Item)
				e.WriteUInt32(UndefinedLength)
				if err := w.writeDataSet(e, item); err != nil {
					return fmt.Errorf("%v: %w", t, err)
				}
				writeTag(e, tag.ItemDelimitationItem)
				e.WriteUInt32(0)
			}
			writeTag(e, tag.SequenceDelimitationItem)
			e.WriteUInt32(0)
			return nil
		}
		body := w.newEncoder()
		for _, item := range v.value {
			sub := w.newEncoder()
			if err := w.writeDataSet(sub, item); err != nil {
				return fmt.Errorf("%v: %w", t, err)
			}
			if err := sub.Error(); err != nil {
				return fmt.Errorf("%v: %w", t, err)
			}
			b := sub.Bytes()
			writeTag(body, tag.Item)
			body.WriteUInt32(uint32(len(b)))
			body.WriteBytes(b)
		}
		if err := body.Error(); err != nil {
			return fmt.Errorf("%v: %w", t, err)
		}
		b := body.Bytes()
		w.writeHeader(e, t, SQ, uint32(len(b)))
		e.WriteBytes(b)
		return nil
	case *fragmentsValue:
		if vr != OB && vr != OW {
			return fmt.Errorf("%v: encapsulated data with VR %s: %w", t, vr, ErrInvalidValue)
		}
		w.writeHeader(e, t, vr, UndefinedLength)
		offsets := make([]byte, 4*len(v.value.OffsetTable))
		for i, off := range v.value.OffsetTable {
			w.ts.ByteOrder.PutUint32(offsets[i*4:], off)
		}
		writeTag(e, tag.Item)
		e.WriteUInt32(uint32(len(offsets)))
		e.WriteBytes(offsets)
		for _, frag := range v.value.Fragments {
			writeTag(e, tag.Item)
			e.WriteUInt32(uint32(len(frag) + len(frag)%2))
			e.WriteBytes(frag)
			if len(frag)%2 == 1 {
				e.WriteByte(0)
			}
		}
		writeTag(e, tag.SequenceDelimitationItem)
		e.WriteUInt32(0)
		return nil
	}
	if elem.UndefinedLength {
		return fmt.Errorf("%v: undefined length is only valid for sequences and encapsulated pixel data: %w", t, ErrInvalidValue)
	}
	raw, err := encodeValue(vr, elem.Value, w.ts.ByteOrder)
	if err != nil {
		return fmt.Errorf("%v: %w", t, err)
	}
	if len(raw)%2 == 1 {
		raw = append(raw, vrTable[vr].pad)
	}
	if w.ts.ExplicitVR && !vr.HasLongLength() && len(raw) > 0xFFFF {
		return fmt.Errorf("%v: %d bytes do not fit the 16-bit length of VR %s: %w", t, len(raw), vr, ErrInvalidValue)
	}
	w.writeHeader(e, t, vr, uint32(len(raw)))
	e.WriteBytes(raw)
	return nil
}

func writeTag(e *dicomio.Encoder, t tag.Tag) {
	e.WriteUInt16(t.Group)
	e.WriteUInt16(t.Element)
}

func (w *writer) writeHeader(e *dicomio.Encoder, t tag.Tag, vr VR, length uint32) {
	writeTag(e, t)
	if !w.ts.ExplicitVR {
		e.WriteUInt32(length)
		return
	}
	e.WriteString(string(vr))
	if vr.HasLongLength() {
		e.WriteZeros(2)
		e.WriteUInt32(length)
		return
	}
	e.WriteUInt16(uint16(length))
}

func encodeValue(vr VR, v Value, bo binary.ByteOrder) ([]byte, error) {
	info, ok := vrTable[vr]
	if !ok {
		return nil, fmt.Errorf("unknown VR %q: %w", vr, ErrInvalidValue)
	}
	mismatch := fmt.Errorf("%T cannot be encoded as VR %s: %w", v, vr, ErrInvalidValue)
	switch val := v.(type) {
	case nil:
		return nil, nil
	case *stringsValue:
		if info.kind != kindText {
			return nil, mismatch
		}
		if !info.multiValued && len(val.value) > 1 {
			return nil, fmt.Errorf("VR %s is single-valued, got %d values: %w", vr, len(val.value), ErrInvalidValue)
		}
		return []byte(strings.Join(val.value, `\`)), nil
	case *intsValue:
		if info.kind != kindInts {
			return nil, mismatch
		}
		buf := make([]byte, info.size*len(val.value))
		for i, x := range val.value {
			if !intFits(info, x) {
				return nil, fmt.Errorf("%d out of range for VR %s: %w", x, vr, ErrInvalidValue)
			}
			switch info.size {
			case 2:
				bo.PutUint16(buf[i*2:], uint16(x))
			case 4:
				bo.PutUint32(buf[i*4:], uint32(x))
			default:
				bo.PutUint64(buf[i*8:], uint64(x))
			}
		}
		return buf, nil
	case *floatsValue:
		if info.kind != kindFloats {
			return nil, mismatch
		}
		buf := make([]byte, info.size*len(val.value))
		for i, x := range val.value {
			if info.size == 4 {
				bo.PutUint32(buf[i*4:], math.Float32bits(float32(x)))
			} else {
				bo.PutUint64(buf[i*8:], math.Float64bits(x))
			}
		}
		return buf, nil
	case *tagsValue:
		if info.kind != kindTags {
			return nil, mismatch
		}
		buf := make([]byte, 4*len(val.value))
		for i, t := range val.value {
			bo.PutUint16(buf[i*4:], t.Group)
			bo.PutUint16(buf[i*4+2:], t.Element)
		}
		return buf, nil
	case *bytesValue:
		if info.kind != kindBytes {
			return nil, mismatch
		}
		b := append([]byte{}, val.value...)
		if bo == binary.BigEndian {
			swapWords(b, info.size)
		}
		return b, nil
	}
	return nil, mismatch
}
