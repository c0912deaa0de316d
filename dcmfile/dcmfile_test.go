package dcmfile_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/giesekow/go-dcmnet/dataset"
	"github.com/giesekow/go-dcmnet/dcmfile"
	"github.com/giesekow/go-dcmnet/tag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdicom "github.com/suyashkumar/dicom"
	stag "github.com/suyashkumar/dicom/pkg/tag"
)

const ctImageUID = "1.2.840.10008.5.1.4.1.1.2"

func testDataSet(t *testing.T, sopInstanceUID string) *dataset.DataSet {
	t.Helper()
	item := dataset.New(
		dataset.MustNewElement(tag.SOPClassUID, dataset.UI, ctImageUID),
		dataset.MustNewElement(tag.SOPInstanceUID, dataset.UI, "1.2.3.4.5.6"),
	)
	return dataset.New(
		dataset.MustNewElement(tag.SOPClassUID, dataset.UI, ctImageUID),
		dataset.MustNewElement(tag.SOPInstanceUID, dataset.UI, sopInstanceUID),
		dataset.MustNewElement(tag.StudyDate, dataset.DA, "20240131"),
		dataset.MustNewElement(tag.Modality, dataset.CS, "CT"),
		dataset.MustNewElement(tag.ReferencedImageSequence, dataset.SQ, []*dataset.DataSet{item}),
		dataset.MustNewElement(tag.PatientName, dataset.PN, "Doe^Jane"),
		dataset.MustNewElement(tag.PatientID, dataset.LO, "P-0042"),
		dataset.MustNewElement(tag.Rows, dataset.US, uint16(2)),
		dataset.MustNewElement(tag.Columns, dataset.US, uint16(2)),
		dataset.MustNewElement(tag.PixelData, dataset.OW, []byte{1, 0, 2, 0, 3, 0, 4, 0}),
	)
}

func TestWriteRead(t *testing.T) {
	for _, ts := range []dataset.TransferSyntax{
		dataset.ImplicitVRLittleEndian,
		dataset.ExplicitVRLittleEndian,
		dataset.ExplicitVRBigEndian,
		dataset.DeflatedExplicitVRLittleEndian,
	} {
		t.Run(ts.UID, func(t *testing.T) {
			uid := dcmfile.NewUID()
			ds := testDataSet(t, uid)
			f, err := dcmfile.New(ds, ts.UID)
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, f.Write(&buf))
			data := buf.Bytes()
			assert.Equal(t, make([]byte, 128), data[:128])
			assert.Equal(t, "DICM", string(data[128:132]))

			got, err := dcmfile.Read(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, ts.UID, got.TransferSyntax.UID)
			assert.True(t, ds.Equal(got.DataSet), "want\n%v\ngot\n%v", ds, got.DataSet)

			_, hasGroupLength := got.Meta.Find(tag.FileMetaInformationGroupLength)
			assert.False(t, hasGroupLength)
			s, err := got.Meta.GetString(tag.MediaStorageSOPInstanceUID)
			require.NoError(t, err)
			assert.Equal(t, uid, s)
			s, err = got.Meta.GetString(tag.MediaStorageSOPClassUID)
			require.NoError(t, err)
			assert.Equal(t, ctImageUID, s)
		})
	}
}

func TestWriteFileReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ct.dcm")
	ds := testDataSet(t, dcmfile.NewUID())
	f, err := dcmfile.New(ds, dataset.ExplicitVRLittleEndian.UID)
	require.NoError(t, err)
	require.NoError(t, dcmfile.WriteFile(path, f))

	got, err := dcmfile.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, ds.Equal(got.DataSet))

	matches, err := filepath.Glob(path + ".*.tmp")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestWriteUsesFileTransferSyntax(t *testing.T) {
	ds := testDataSet(t, dcmfile.NewUID())
	f := &dcmfile.File{
		Meta:           dcmfile.NewMeta(ctImageUID, "1.2.3", dataset.ImplicitVRLittleEndian.UID),
		DataSet:        ds,
		TransferSyntax: dataset.ExplicitVRBigEndian,
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	got, err := dcmfile.Parse(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, dataset.ExplicitVRBigEndian.UID, got.TransferSyntax.UID)
	assert.True(t, ds.Equal(got.DataSet))
}

func TestMetaWithoutGroupLength(t *testing.T) {
	ds := testDataSet(t, "1.2.3.4")
	meta := dcmfile.NewMeta(ctImageUID, "1.2.3.4", dataset.ExplicitVRLittleEndian.UID)
	meta.Sort()
	metaBytes, err := dataset.NewEncoder(tag.StandardDictionary).Encode(meta, dataset.ExplicitVRLittleEndian)
	require.NoError(t, err)
	ds.Sort()
	body, err := dataset.NewEncoder(tag.StandardDictionary).Encode(ds, dataset.ExplicitVRLittleEndian)
	require.NoError(t, err)

	var buf bytes.Buffer
	buf.Write(make([]byte, 128))
	buf.WriteString("DICM")
	buf.Write(metaBytes)
	buf.Write(body)

	got, err := dcmfile.Parse(buf.Bytes())
	require.NoError(t, err)
	assert.True(t, ds.Equal(got.DataSet))
}

func TestNotPart10(t *testing.T) {
	_, err := dcmfile.Parse([]byte("DICM"))
	assert.ErrorIs(t, err, dcmfile.ErrNotPart10)

	_, err = dcmfile.Parse(make([]byte, 200))
	assert.ErrorIs(t, err, dcmfile.ErrNotPart10)
}

func TestTruncatedMetaGroup(t *testing.T) {
	f, err := dcmfile.New(testDataSet(t, "1.2.3.4"), dataset.ExplicitVRLittleEndian.UID)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	_, err = dcmfile.Parse(buf.Bytes()[:150])
	assert.ErrorIs(t, err, dataset.ErrCorruptStream)
}

// The files we write must be readable by an independent parser.
func TestCrossCheckWithSuyashkumar(t *testing.T) {
	uid := dcmfile.NewUID()
	f, err := dcmfile.New(testDataSet(t, uid), dataset.ExplicitVRLittleEndian.UID)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	parsed, err := sdicom.Parse(bytes.NewReader(buf.Bytes()), int64(buf.Len()), nil)
	require.NoError(t, err)

	for _, c := range []struct {
		tag  stag.Tag
		want string
	}{
		{stag.TransferSyntaxUID, dataset.ExplicitVRLittleEndian.UID},
		{stag.MediaStorageSOPInstanceUID, uid},
		{stag.SOPInstanceUID, uid},
		{stag.PatientName, "Doe^Jane"},
		{stag.PatientID, "P-0042"},
		{stag.Modality, "CT"},
	} {
		elem, err := parsed.FindElementByTag(c.tag)
		require.NoError(t, err, "%v", c.tag)
		values := sdicom.MustGetStrings(elem.Value)
		require.Len(t, values, 1, "%v", c.tag)
		assert.Equal(t, c.want, strings.TrimRight(values[0], "\x00 "), "%v", c.tag)
	}
	seq, err := parsed.FindElementByTag(stag.ReferencedImageSequence)
	require.NoError(t, err)
	assert.Equal(t, sdicom.Sequences, seq.Value.ValueType())
}

func TestNewUID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		uid := dcmfile.NewUID()
		assert.True(t, strings.HasPrefix(uid, "2.25."), uid)
		assert.LessOrEqual(t, len(uid), 64)
		assert.NotContains(t, uid[5:], ".")
		assert.False(t, seen[uid])
		seen[uid] = true
	}
}
