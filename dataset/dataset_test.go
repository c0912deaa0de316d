package dataset

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/giesekow/go-dcmnet/tag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allTransferSyntaxes = []TransferSyntax{
	ImplicitVRLittleEndian,
	ExplicitVRLittleEndian,
	ExplicitVRBigEndian,
	DeflatedExplicitVRLittleEndian,
}

func patientDataSet(t *testing.T) *DataSet {
	t.Helper()
	item := New(MustNewElement(tag.PatientID, LO, "12345"))
	ds := New(
		MustNewElement(tag.PatientName, PN, "Doe^John"),
		MustNewElement(tag.PatientID, LO, "ID"),
		MustNewElement(tag.StudyInstanceUID, UI, "1.2.3.4.5"),
	)
	ds.Add(MustNewElement(tag.ReferencedImageSequence, SQ, []*DataSet{item}))
	ds.Sort()
	return ds
}

func roundTrip(t *testing.T, ds *DataSet, ts TransferSyntax, opts ...EncodeOption) *DataSet {
	t.Helper()
	data, err := NewEncoder(nil, opts...).Encode(ds, ts)
	require.NoError(t, err)
	got, err := NewDecoder(nil).Decode(data, ts)
	require.NoError(t, err)
	return got
}

func TestImplicitVRPatientScenario(t *testing.T) {
	ds := patientDataSet(t)
	data, err := NewEncoder(nil).Encode(ds, ImplicitVRLittleEndian)
	require.NoError(t, err)

	got, err := NewDecoder(nil).Decode(data, ImplicitVRLittleEndian)
	require.NoError(t, err)

	name, err := got.Get(tag.PatientName)
	require.NoError(t, err)
	assert.Equal(t, PN, name.VR)
	assert.Equal(t, []string{"Doe^John"}, name.Strings())

	uid, err := got.Get(tag.StudyInstanceUID)
	require.NoError(t, err)
	assert.Equal(t, UI, uid.VR)
	assert.Equal(t, []string{"1.2.3.4.5"}, uid.Strings())

	items, err := got.GetSequence(tag.ReferencedImageSequence)
	require.NoError(t, err)
	require.Len(t, items, 1)
	id, err := items[0].GetString(tag.PatientID)
	require.NoError(t, err)
	assert.Equal(t, "12345", id)
	assert.True(t, ds.Equal(got))
}

func TestRoundTripAllTransferSyntaxes(t *testing.T) {
	frags := &EncapsulatedFragments{OffsetTable: []uint32{0}, Fragments: [][]byte{{1, 2, 3, 4}}}
	for _, ts := range allTransferSyntaxes {
		t.Run(ts.String(), func(t *testing.T) {
			ds := patientDataSet(t)
			require.NoError(t, ds.Put(tag.Rows, US, uint16(512)))
			require.NoError(t, ds.Put(tag.Columns, US, uint16(256)))
			require.NoError(t, ds.Put(tag.InstanceNumber, IS, "7"))
			require.NoError(t, ds.Put(tag.New(0x0018, 0x0050), DS, []string{"0.5", "1.25"}))
			require.NoError(t, ds.Put(tag.New(0x0020, 0x9165), AT, tag.PatientName))
			require.NoError(t, ds.Put(tag.New(0x0018, 0x9087), FD, 2.5))
			require.NoError(t, ds.Put(tag.New(0x0028, 0x1052), DS, "-1024"))
			require.NoError(t, ds.Put(tag.New(0x0040, 0xA132), UL, []uint32{1, 0xFFFFFFFF}))
			if ts.ExplicitVR {
				require.NoError(t, ds.Put(tag.PixelData, OB, frags))
			}
			ds.Sort()
			got := roundTrip(t, ds, ts)
			assert.True(t, ds.Equal(got), "want\n%v\ngot\n%v", ds, got)
		})
	}
}

func TestDefinedAndUndefinedLengthsDecodeEqually(t *testing.T) {
	ds := patientDataSet(t)
	for _, ts := range allTransferSyntaxes {
		defined, err := NewEncoder(nil, WithLengthPolicy(DefinedLengths)).Encode(ds, ts)
		require.NoError(t, err)
		undefined, err := NewEncoder(nil, WithLengthPolicy(UndefinedLengths)).Encode(ds, ts)
		require.NoError(t, err)
		if !ts.Deflated {
			assert.NotEqual(t, defined, undefined)
		}

		a, err := NewDecoder(nil).Decode(defined, ts)
		require.NoError(t, err)
		b, err := NewDecoder(nil).Decode(undefined, ts)
		require.NoError(t, err)
		assert.True(t, a.Equal(b))
		seq, _ := b.Get(tag.ReferencedImageSequence)
		assert.True(t, seq.UndefinedLength)
	}
}

func TestOddValuesArePadded(t *testing.T) {
	ds := New(
		MustNewElement(tag.SOPInstanceUID, UI, "1.2.3"),
		MustNewElement(tag.PatientName, PN, "Doe"),
	)
	data, err := NewEncoder(nil).Encode(ds, ExplicitVRLittleEndian)
	require.NoError(t, err)
	// tag(4) VR(2) length(2) value(6) for each element.
	require.Len(t, data, 28)
	assert.Equal(t, uint16(6), binary.LittleEndian.Uint16(data[6:]))
	assert.Equal(t, []byte("1.2.3\x00"), data[8:14])
	assert.Equal(t, []byte("Doe "), data[22:26])

	got, err := NewDecoder(nil).Decode(data, ExplicitVRLittleEndian)
	require.NoError(t, err)
	s, _ := got.GetString(tag.SOPInstanceUID)
	assert.Equal(t, "1.2.3", s)
	s, _ = got.GetString(tag.PatientName)
	assert.Equal(t, "Doe", s)
}

func TestMultiValueSplitting(t *testing.T) {
	ds := New(MustNewElement(tag.New(0x0008, 0x0008), CS, []string{"ORIGINAL", "PRIMARY", "AXIAL"}))
	got := roundTrip(t, ds, ImplicitVRLittleEndian)
	v, err := got.GetStrings(tag.New(0x0008, 0x0008))
	require.NoError(t, err)
	assert.Equal(t, []string{"ORIGINAL", "PRIMARY", "AXIAL"}, v)

	_, err = NewElement(tag.New(0x0008, 0x0008), CS, []string{`A\B`})
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = NewElement(tag.PatientName, PN, `A\B`)
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.ErrorIs(t, New().Put(tag.PatientName, PN, `Doe^John\Roe^Jane`), ErrInvalidValue)
	// Single-valued text VRs may hold a backslash.
	lt, err := NewElement(tag.New(0x0020, 0x4000), LT, `C:\scans`)
	require.NoError(t, err)
	assert.Equal(t, []string{`C:\scans`}, lt.Strings())
	_, err = NewElement(tag.New(0x0020, 0x4000), LT, []string{"a", "b"})
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestEmptyValue(t *testing.T) {
	ds := New(MustNewElement(tag.PatientName, PN, ""))
	got := roundTrip(t, ds, ExplicitVRLittleEndian)
	v, err := got.GetStrings(tag.PatientName)
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestTruncatedStreamIsCorrupt(t *testing.T) {
	ds := patientDataSet(t)
	for _, ts := range []TransferSyntax{ImplicitVRLittleEndian, ExplicitVRLittleEndian, ExplicitVRBigEndian} {
		data, err := NewEncoder(nil).Encode(ds, ts)
		require.NoError(t, err)
		_, err = NewDecoder(nil).Decode(data[:len(data)-3], ts)
		assert.ErrorIs(t, err, ErrCorruptStream, ts.String())
	}
}

func TestLengthOverrunIsCorrupt(t *testing.T) {
	// (0010,0010) PN with length 0x20 but only 4 value bytes.
	data := []byte{0x10, 0x00, 0x10, 0x00, 'P', 'N', 0x20, 0x00, 'D', 'o', 'e', ' '}
	_, err := NewDecoder(nil).Decode(data, ExplicitVRLittleEndian)
	assert.ErrorIs(t, err, ErrCorruptStream)
}

func TestUnknownExplicitVRFallsBackToUN(t *testing.T) {
	data := []byte{0x09, 0x00, 0x10, 0x10, 'Z', 'Z', 0x04, 0x00, 1, 2, 3, 4}
	ds, err := NewDecoder(nil).Decode(data, ExplicitVRLittleEndian)
	require.NoError(t, err)
	e, err := ds.Get(tag.New(0x0009, 0x1010))
	require.NoError(t, err)
	assert.Equal(t, UN, e.VR)
	assert.Equal(t, []byte{1, 2, 3, 4}, e.Bytes())
}

func TestUnknownExplicitVRLongForm(t *testing.T) {
	// Reserved zero bytes, then a 32-bit length.
	data := []byte{0x09, 0x00, 0x10, 0x10, 'Z', 'Z', 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 7, 8}
	ds, err := NewDecoder(nil).Decode(data, ExplicitVRLittleEndian)
	require.NoError(t, err)
	e, err := ds.Get(tag.New(0x0009, 0x1010))
	require.NoError(t, err)
	assert.Equal(t, UN, e.VR)
	assert.Equal(t, []byte{7, 8}, e.Bytes())

	// An empty short-form value with an unknown VR reads as the long form,
	// so the next element header is taken as a length.
	data = []byte{0x09, 0x00, 0x10, 0x10, 'Z', 'Z', 0x00, 0x00,
		0x10, 0x00, 0x10, 0x00, 'P', 'N', 0x00, 0x00}
	_, err = NewDecoder(nil).Decode(data, ExplicitVRLittleEndian)
	assert.ErrorIs(t, err, ErrCorruptStream)
}

func TestDeflatedSizeLimit(t *testing.T) {
	ds := New(MustNewElement(tag.PixelData, OB, make([]byte, 1<<20)))
	data, err := NewEncoder(nil).Encode(ds, DeflatedExplicitVRLittleEndian)
	require.NoError(t, err)
	require.Less(t, len(data), 1<<16)

	_, err = NewDecoder(nil, MaxInflatedSize(1<<16)).Decode(data, DeflatedExplicitVRLittleEndian)
	assert.ErrorIs(t, err, ErrCorruptStream)

	got, err := NewDecoder(nil).Decode(data, DeflatedExplicitVRLittleEndian)
	require.NoError(t, err)
	assert.True(t, ds.Equal(got))
}

func TestStopAtTag(t *testing.T) {
	ds := New(
		MustNewElement(tag.TransferSyntaxUID, UI, ExplicitVRLittleEndian.UID),
		MustNewElement(tag.SOPInstanceUID, UI, "1.2.3"),
		MustNewElement(tag.PatientName, PN, "Doe^John"),
	)
	data, err := NewEncoder(nil).Encode(ds, ExplicitVRLittleEndian)
	require.NoError(t, err)

	got, err := NewDecoder(nil, StopAtTag(tag.New(0x0008, 0x0000))).Decode(data, ExplicitVRLittleEndian)
	require.NoError(t, err)
	require.Len(t, got.Elements(), 1)
	uid, err := got.GetString(tag.TransferSyntaxUID)
	require.NoError(t, err)
	assert.Equal(t, ExplicitVRLittleEndian.UID, uid)

	// The stop tag itself is not read.
	got, err = NewDecoder(nil, StopAtTag(tag.PatientName)).Decode(data, ExplicitVRLittleEndian)
	require.NoError(t, err)
	assert.Len(t, got.Elements(), 2)
}

func TestImplicitDictionaryMissIsUN(t *testing.T) {
	ds := New(MustNewElement(tag.New(0x0011, 0x1001), UN, []byte{0xAA, 0xBB}))
	got := roundTrip(t, ds, ImplicitVRLittleEndian)
	e, err := got.Get(tag.New(0x0011, 0x1001))
	require.NoError(t, err)
	assert.Equal(t, UN, e.VR)
	assert.Equal(t, []byte{0xAA, 0xBB}, e.Bytes())
}

func TestPrivateCreatorResolution(t *testing.T) {
	dict := tag.NewMapDictionary()
	dict.Add(tag.Entry{Tag: tag.NewPrivate(0x0029, 0x0010, "ACME 1.0"), VR: "DS", VM: "1", Name: "AcmeScale"})
	dict.Add(tag.Entry{Tag: tag.NewPrivate(0x0029, 0x0020, "OTHER"), VR: "US", VM: "1", Name: "OtherCount"})
	chain := tag.Chain{dict, tag.StandardDictionary}

	ds := New(
		MustNewElement(tag.New(0x0029, 0x0010), LO, "ACME 1.0"),
		MustNewElement(tag.New(0x0029, 0x0011), LO, "OTHER"),
		MustNewElement(tag.New(0x0029, 0x1010), DS, "1.5"),
		MustNewElement(tag.New(0x0029, 0x1120), US, uint16(9)),
	)
	data, err := NewEncoder(chain).Encode(ds, ImplicitVRLittleEndian)
	require.NoError(t, err)
	got, err := NewDecoder(chain).Decode(data, ImplicitVRLittleEndian)
	require.NoError(t, err)

	scale, err := got.Get(tag.New(0x0029, 0x1010))
	require.NoError(t, err)
	assert.Equal(t, DS, scale.VR)
	assert.Equal(t, "ACME 1.0", scale.Tag.Creator)
	assert.Equal(t, []string{"1.5"}, scale.Strings())

	count, err := got.Get(tag.New(0x0029, 0x1120))
	require.NoError(t, err)
	assert.Equal(t, US, count.VR)
	assert.Equal(t, []int64{9}, count.Ints())

	creator, ok := got.PrivateCreator(tag.New(0x0029, 0x1120))
	require.True(t, ok)
	assert.Equal(t, "OTHER", creator)
	assert.True(t, ds.Equal(got))
}

func TestPrivateCreatorResolvedFromEnclosingDataSet(t *testing.T) {
	dict := tag.NewMapDictionary()
	dict.Add(tag.Entry{Tag: tag.NewPrivate(0x0029, 0x0010, "ACME 1.0"), VR: "DS", VM: "1", Name: "AcmeScale"})
	dict.Add(tag.Entry{Tag: tag.NewPrivate(0x0029, 0x0020, "INNER"), VR: "US", VM: "1", Name: "InnerCount"})
	chain := tag.Chain{dict, tag.StandardDictionary}

	inner := New(
		MustNewElement(tag.New(0x0029, 0x0011), LO, "INNER"),
		MustNewElement(tag.New(0x0029, 0x1010), DS, "2.5"),
		MustNewElement(tag.New(0x0029, 0x1120), US, uint16(3)),
	)
	ds := New(
		MustNewElement(tag.New(0x0029, 0x0010), LO, "ACME 1.0"),
		MustNewElement(tag.ReferencedImageSequence, SQ, []*DataSet{inner}),
	)
	ds.Sort()
	data, err := NewEncoder(chain).Encode(ds, ImplicitVRLittleEndian)
	require.NoError(t, err)
	got, err := NewDecoder(chain).Decode(data, ImplicitVRLittleEndian)
	require.NoError(t, err)

	items, err := got.GetSequence(tag.ReferencedImageSequence)
	require.NoError(t, err)
	require.Len(t, items, 1)

	// (0029,0010) is only in the enclosing data set.
	scale, err := items[0].Get(tag.New(0x0029, 0x1010))
	require.NoError(t, err)
	assert.Equal(t, DS, scale.VR)
	assert.Equal(t, "ACME 1.0", scale.Tag.Creator)
	assert.Equal(t, []string{"2.5"}, scale.Strings())

	count, err := items[0].Get(tag.New(0x0029, 0x1120))
	require.NoError(t, err)
	assert.Equal(t, US, count.VR)
	assert.Equal(t, "INNER", count.Tag.Creator)
	assert.Equal(t, []int64{3}, count.Ints())
}

func TestUndefinedLengthUNIsImplicitSequence(t *testing.T) {
	item := New(MustNewElement(tag.PatientID, LO, "X1"))
	inner, err := NewEncoder(nil).Encode(item, ImplicitVRLittleEndian)
	require.NoError(t, err)

	var data []byte
	le := binary.LittleEndian
	data = le.AppendUint16(data, 0x0009)
	data = le.AppendUint16(data, 0x1001)
	data = append(data, 'U', 'N', 0, 0)
	data = le.AppendUint32(data, UndefinedLength)
	data = le.AppendUint16(data, 0xFFFE)
	data = le.AppendUint16(data, 0xE000)
	data = le.AppendUint32(data, uint32(len(inner)))
	data = append(data, inner...)
	data = le.AppendUint16(data, 0xFFFE)
	data = le.AppendUint16(data, 0xE0DD)
	data = le.AppendUint32(data, 0)

	ds, err := NewDecoder(nil).Decode(data, ExplicitVRLittleEndian)
	require.NoError(t, err)
	items, err := ds.GetSequence(tag.New(0x0009, 0x1001))
	require.NoError(t, err)
	require.Len(t, items, 1)
	id, _ := items[0].GetString(tag.PatientID)
	assert.Equal(t, "X1", id)
}

func TestUnsortedTagsRejected(t *testing.T) {
	ds := New(
		MustNewElement(tag.PatientName, PN, "A"),
		MustNewElement(tag.SOPInstanceUID, UI, "1.2"),
	)
	_, err := NewEncoder(nil).Encode(ds, ExplicitVRLittleEndian)
	assert.ErrorIs(t, err, ErrInvalidValue)

	data, err := NewEncoder(nil, AllowUnsortedTags()).Encode(ds, ExplicitVRLittleEndian)
	require.NoError(t, err)
	got, err := NewDecoder(nil).Decode(data, ExplicitVRLittleEndian)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())
}

func TestShortLengthOverflow(t *testing.T) {
	long := make([]byte, 0x10000)
	for i := range long {
		long[i] = 'A'
	}
	ds := New(MustNewElement(tag.PatientName, PN, string(long)))
	_, err := NewEncoder(nil).Encode(ds, ExplicitVRLittleEndian)
	assert.ErrorIs(t, err, ErrInvalidValue)

	// Implicit VR has a 32-bit length for every element.
	_, err = NewEncoder(nil).Encode(ds, ImplicitVRLittleEndian)
	assert.NoError(t, err)
}

func TestUndefinedLengthOnScalarRejected(t *testing.T) {
	e := MustNewElement(tag.PatientName, PN, "A")
	e.UndefinedLength = true
	_, err := NewEncoder(nil).Encode(New(e), ExplicitVRLittleEndian)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestBigEndianWordSwap(t *testing.T) {
	ds := New(MustNewElement(tag.PixelData, OW, []byte{0x01, 0x02, 0x03, 0x04}))
	data, err := NewEncoder(nil).Encode(ds, ExplicitVRBigEndian)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x01, 0x04, 0x03}, data[len(data)-4:])
	got, err := NewDecoder(nil).Decode(data, ExplicitVRBigEndian)
	require.NoError(t, err)
	e, _ := got.Get(tag.PixelData)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, e.Bytes())
}

func TestSkipPixelData(t *testing.T) {
	ds := New(
		MustNewElement(tag.PatientName, PN, "A"),
		MustNewElement(tag.PixelData, OW, []byte{1, 2, 3, 4}),
	)
	data, err := NewEncoder(nil).Encode(ds, ExplicitVRLittleEndian)
	require.NoError(t, err)
	got, err := NewDecoder(nil, SkipPixelData()).Decode(data, ExplicitVRLittleEndian)
	require.NoError(t, err)
	_, ok := got.Find(tag.PixelData)
	assert.False(t, ok)
	assert.Equal(t, 1, got.Len())
}

func TestGetters(t *testing.T) {
	ds := patientDataSet(t)
	_, err := ds.Get(tag.Modality)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = ds.GetInt(tag.PatientName)
	assert.ErrorIs(t, err, ErrInvalidValue)

	require.NoError(t, ds.Put(tag.Rows, US, 12))
	rows, err := ds.GetUInt16(tag.Rows)
	require.NoError(t, err)
	assert.Equal(t, uint16(12), rows)

	assert.True(t, ds.Remove(tag.Rows))
	assert.False(t, ds.Remove(tag.Rows))
	_, err = NewElement(tag.Rows, US, 70000)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestLookupTransferSyntax(t *testing.T) {
	ts, err := LookupTransferSyntax("1.2.840.10008.1.2")
	require.NoError(t, err)
	assert.False(t, ts.ExplicitVR)

	ts, err = LookupTransferSyntax("1.2.840.10008.1.2.4.50")
	require.NoError(t, err)
	assert.True(t, ts.Encapsulated)
	assert.True(t, ts.ExplicitVR)

	_, err = LookupTransferSyntax("1.2.3.4")
	assert.ErrorIs(t, err, ErrUnknownTransferSyntax)
}

func TestDecodedStrings(t *testing.T) {
	ds := New(
		MustNewElement(tag.SpecificCharacterSet, CS, "ISO_IR 100"),
		MustNewElement(tag.PatientName, PN, "M\xfcller^Hans"),
	)
	v, err := ds.DecodedStrings(tag.PatientName)
	require.NoError(t, err)
	assert.Equal(t, []string{"Müller^Hans"}, v)

	plain := New(MustNewElement(tag.PatientName, PN, "Doe^John"))
	v, err = plain.DecodedStrings(tag.PatientName)
	require.NoError(t, err)
	assert.Equal(t, []string{"Doe^John"}, v)
}
