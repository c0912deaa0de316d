// Package dcmfile reads and writes DICOM Part 10 files: a 128-byte
// preamble, the "DICM" prefix, the file meta group in Explicit VR Little
// Endian, then the data set in the transfer syntax the meta group names.
// P3.10 7.1.
package dcmfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/giesekow/go-dcmnet/dataset"
	"github.com/giesekow/go-dcmnet/tag"
	"github.com/google/uuid"
	"github.com/grailbio/go-dicom"
	"github.com/grailbio/go-dicom/dicomlog"
	"github.com/grailbio/go-dicom/dicomuid"
)

const (
	preambleLength = 128
	magic          = "DICM"
	headerLength   = preambleLength + len(magic)
)

// ErrNotPart10 is returned for input that lacks the preamble and "DICM".
var ErrNotPart10 = errors.New("not a DICOM Part 10 file")

// File is a decoded Part 10 file.
type File struct {
	// Meta holds the (0002,xxxx) elements, without the group length.
	Meta *dataset.DataSet
	// DataSet is everything after the meta group.
	DataSet *dataset.DataSet
	// TransferSyntax is the encoding of DataSet, from (0002,0010).
	TransferSyntax dataset.TransferSyntax
}

// New wraps ds in a file encoded in transferSyntaxUID. The meta group is
// built from the SOPClassUID and SOPInstanceUID of ds.
func New(ds *dataset.DataSet, transferSyntaxUID string) (*File, error) {
	ts, err := dataset.LookupTransferSyntax(transferSyntaxUID)
	if err != nil {
		return nil, fmt.Errorf("dcmfile.New: %w", err)
	}
	sopClassUID, err := ds.GetString(tag.SOPClassUID)
	if err != nil {
		return nil, fmt.Errorf("dcmfile.New: %w", err)
	}
	sopInstanceUID, err := ds.GetString(tag.SOPInstanceUID)
	if err != nil {
		return nil, fmt.Errorf("dcmfile.New: %w", err)
	}
	return &File{
		Meta:           NewMeta(sopClassUID, sopInstanceUID, ts.UID),
		DataSet:        ds,
		TransferSyntax: ts,
	}, nil
}

// NewMeta builds a file meta group, minus the group length which Write
// computes.
func NewMeta(sopClassUID, sopInstanceUID, transferSyntaxUID string) *dataset.DataSet {
	return dataset.New(
		dataset.MustNewElement(tag.FileMetaInformationVersion, dataset.OB, []byte{0, 1}),
		dataset.MustNewElement(tag.MediaStorageSOPClassUID, dataset.UI, sopClassUID),
		dataset.MustNewElement(tag.MediaStorageSOPInstanceUID, dataset.UI, sopInstanceUID),
		dataset.MustNewElement(tag.TransferSyntaxUID, dataset.UI, transferSyntaxUID),
		dataset.MustNewElement(tag.ImplementationClassUID, dataset.UI, dicom.GoDICOMImplementationClassUID),
		dataset.MustNewElement(tag.ImplementationVersionName, dataset.SH, dicom.GoDICOMImplementationVersionName),
	)
}

// NewUID returns a UID under the "2.25" root, derived from a random UUID.
// P3.5 B.2.
func NewUID() string {
	u := uuid.New()
	return "2.25." + new(big.Int).SetBytes(u[:]).String()
}

// ReadFile reads the Part 10 file at path.
func ReadFile(path string, opts ...dataset.DecodeOption) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dcmfile.ReadFile: %w", err)
	}
	f, err := Parse(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("dcmfile.ReadFile %s: %w", path, err)
	}
	return f, nil
}

// Read reads a whole Part 10 stream.
func Read(in io.Reader, opts ...dataset.DecodeOption) (*File, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("dcmfile.Read: %w", err)
	}
	return Parse(data, opts...)
}

// Parse decodes a Part 10 file held in memory.
func Parse(data []byte, opts ...dataset.DecodeOption) (*File, error) {
	if len(data) < headerLength || string(data[preambleLength:headerLength]) != magic {
		return nil, ErrNotPart10
	}
	metaEnd, err := metaGroupEnd(data)
	if err != nil {
		return nil, fmt.Errorf("dcmfile.Parse: %w", err)
	}
	meta, err := dataset.NewDecoder(tag.StandardDictionary).Decode(data[headerLength:metaEnd], dataset.ExplicitVRLittleEndian)
	if err != nil {
		return nil, fmt.Errorf("dcmfile.Parse: meta group: %w", err)
	}
	meta.Remove(tag.FileMetaInformationGroupLength)
	tsUID, err := meta.GetString(tag.TransferSyntaxUID)
	if err != nil {
		return nil, fmt.Errorf("dcmfile.Parse: %w", err)
	}
	ts, err := dataset.LookupTransferSyntax(tsUID)
	if err != nil {
		return nil, fmt.Errorf("dcmfile.Parse: %w", err)
	}
	dicomlog.Vprintf(2, "dcmfile.Parse: meta group ends at %d, transfer syntax %s", metaEnd, dicomuid.UIDString(ts.UID))
	ds, err := dataset.NewDecoder(tag.StandardDictionary, opts...).Decode(data[metaEnd:], ts)
	if err != nil {
		return nil, fmt.Errorf("dcmfile.Parse: %w", err)
	}
	return &File{Meta: meta, DataSet: ds, TransferSyntax: ts}, nil
}

// metaGroupEnd finds the offset of the first byte after the meta group. It
// trusts (0002,0000) when present and otherwise walks the group 2
// elements.
func metaGroupEnd(data []byte) (int, error) {
	offset := headerLength
	if len(data) >= offset+12 &&
		binary.LittleEndian.Uint16(data[offset:]) == 0x0002 &&
		binary.LittleEndian.Uint16(data[offset+2:]) == 0x0000 &&
		string(data[offset+4:offset+6]) == "UL" {
		end := offset + 12 + int(binary.LittleEndian.Uint32(data[offset+8:]))
		if end > len(data) {
			return 0, fmt.Errorf("meta group length %d overruns the file: %w", end-offset-12, dataset.ErrCorruptStream)
		}
		return end, nil
	}
	dicomlog.Vprintf(1, "dcmfile: meta group has no group length, scanning")
	for offset+8 <= len(data) && binary.LittleEndian.Uint16(data[offset:]) == 0x0002 {
		vr := dataset.VR(data[offset+4 : offset+6])
		var length int
		if vr.HasLongLength() {
			if offset+12 > len(data) {
				return 0, fmt.Errorf("truncated meta element: %w", dataset.ErrCorruptStream)
			}
			length = int(binary.LittleEndian.Uint32(data[offset+8:]))
			offset += 12
		} else {
			length = int(binary.LittleEndian.Uint16(data[offset+6:]))
			offset += 8
		}
		offset += length
		if offset > len(data) {
			return 0, fmt.Errorf("meta element overruns the file: %w", dataset.ErrCorruptStream)
		}
	}
	return offset, nil
}

// Write encodes f. The transfer syntax recorded in the meta group is
// always f.TransferSyntax. The data set is sorted in place.
func (f *File) Write(out io.Writer) error {
	meta := dataset.New(f.Meta.Elements()...)
	meta.Remove(tag.FileMetaInformationGroupLength)
	if err := meta.Put(tag.TransferSyntaxUID, dataset.UI, f.TransferSyntax.UID); err != nil {
		return fmt.Errorf("dcmfile.Write: %w", err)
	}
	meta.Sort()
	encoder := dataset.NewEncoder(tag.StandardDictionary, dataset.WithLengthPolicy(dataset.DefinedLengths))
	metaBytes, err := encoder.Encode(meta, dataset.ExplicitVRLittleEndian)
	if err != nil {
		return fmt.Errorf("dcmfile.Write: meta group: %w", err)
	}
	groupLength, err := encoder.Encode(dataset.New(
		dataset.MustNewElement(tag.FileMetaInformationGroupLength, dataset.UL, uint32(len(metaBytes)))),
		dataset.ExplicitVRLittleEndian)
	if err != nil {
		return fmt.Errorf("dcmfile.Write: meta group: %w", err)
	}
	f.DataSet.Sort()
	body, err := dataset.NewEncoder(tag.StandardDictionary).Encode(f.DataSet, f.TransferSyntax)
	if err != nil {
		return fmt.Errorf("dcmfile.Write: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(headerLength + len(groupLength) + len(metaBytes) + len(body))
	buf.Write(make([]byte, preambleLength))
	buf.WriteString(magic)
	buf.Write(groupLength)
	buf.Write(metaBytes)
	buf.Write(body)
	if _, err := out.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("dcmfile.Write: %w", err)
	}
	return nil
}

// WriteFile writes f to path. The file is written under a temporary name
// and renamed, so readers never see a partial file.
func WriteFile(path string, f *File) error {
	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("dcmfile.WriteFile: %w", err)
	}
	if err := f.Write(out); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("dcmfile.WriteFile: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("dcmfile.WriteFile: %w", err)
	}
	return nil
}
