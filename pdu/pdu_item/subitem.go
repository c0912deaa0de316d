// Package pdu_item implements the variable items of A-ASSOCIATE-RQ and
// A-ASSOCIATE-AC PDUs. P3.8 9.3.2 and 9.3.3.
package pdu_item

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/grailbio/go-dicom/dicomio"
)

// SubItem is one variable item, such as ApplicationContextItem or
// TransferSyntaxSubItem.
type SubItem interface {
	fmt.Stringer

	// Write serializes the item, header included.
	Write(*dicomio.Encoder)
}

// Possible Type field values for SubItem.
const (
	ItemTypeApplicationContext           = 0x10
	ItemTypePresentationContextRequest   = 0x20
	ItemTypePresentationContextResponse  = 0x21
	ItemTypeAbstractSyntax               = 0x30
	ItemTypeTransferSyntax               = 0x40
	ItemTypeUserInformation              = 0x50
	ItemTypeUserInformationMaximumLength = 0x51
	ItemTypeImplementationClassUID       = 0x52
	ItemTypeAsynchronousOperationsWindow = 0x53
	ItemTypeRoleSelection                = 0x54
	ItemTypeImplementationVersionName    = 0x55
)

// NewEncoder returns the big endian encoder every PDU is written with.
func NewEncoder() *dicomio.Encoder {
	return dicomio.NewBytesEncoder(binary.BigEndian, dicomio.UnknownVR)
}

// NewDecoder returns a big endian decoder bounded to data.
func NewDecoder(data []byte) *dicomio.Decoder {
	d := dicomio.NewBytesDecoder(data, binary.BigEndian, dicomio.UnknownVR)
	d.PushLimit(int64(len(data)))
	return d
}

// DecodeSubItem reads one item. Items of unknown type are returned as
// SubItemUnsupported. The decoder is always left at the end of the item as
// announced by its length field, even when the body was shorter than that.
func DecodeSubItem(d *dicomio.Decoder) (SubItem, error) {
	itemType := d.ReadByte()
	d.Skip(1)
	length := d.ReadUInt16()
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("DecodeSubItem: header: %w", err)
	}
	d.PushLimit(int64(length))
	item := decodeSubItemBody(d, itemType, length)
	d.PopLimit()
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("DecodeSubItem(type 0x%02x, %d bytes): %w", itemType, length, err)
	}
	return item, nil
}

func decodeSubItemBody(d *dicomio.Decoder, itemType byte, length uint16) SubItem {
	switch itemType {
	case ItemTypeApplicationContext:
		return &ApplicationContextItem{Name: decodeSubItemWithName(d, length)}
	case ItemTypeAbstractSyntax:
		return &AbstractSyntaxSubItem{Name: decodeSubItemWithName(d, length)}
	case ItemTypeTransferSyntax:
		return &TransferSyntaxSubItem{Name: decodeSubItemWithName(d, length)}
	case ItemTypePresentationContextRequest, ItemTypePresentationContextResponse:
		return decodePresentationContextItem(d, itemType)
	case ItemTypeUserInformation:
		return decodeUserInformationItem(d)
	case ItemTypeUserInformationMaximumLength:
		return decodeUserInformationMaximumLengthItem(d, length)
	case ItemTypeImplementationClassUID:
		return &ImplementationClassUIDSubItem{Name: decodeSubItemWithName(d, length)}
	case ItemTypeAsynchronousOperationsWindow:
		return decodeAsynchronousOperationsWindowSubItem(d, length)
	case ItemTypeRoleSelection:
		return decodeRoleSelectionSubItem(d)
	case ItemTypeImplementationVersionName:
		return &ImplementationVersionNameSubItem{Name: decodeSubItemWithName(d, length)}
	}
	return &SubItemUnsupported{Type: itemType, Data: d.ReadBytes(int(length))}
}

// decodeSubItems reads items until the current limit.
func decodeSubItems(d *dicomio.Decoder) []SubItem {
	var items []SubItem
	for !d.EOF() {
		item, err := DecodeSubItem(d)
		if err != nil {
			d.SetError(err)
			break
		}
		items = append(items, item)
	}
	return items
}

// DecodeSubItems reads items until the decoder's limit is exhausted.
func DecodeSubItems(d *dicomio.Decoder) ([]SubItem, error) {
	items := decodeSubItems(d)
	return items, d.Error()
}

func encodeSubItemHeader(e *dicomio.Encoder, itemType byte, length int) {
	if length > 0xFFFF {
		e.SetErrorf("item type 0x%02x: length %d does not fit in 16 bits", itemType, length)
		return
	}
	e.WriteByte(itemType)
	e.WriteZeros(1)
	e.WriteUInt16(uint16(length))
}

// encodeSubItems writes items into a scratch encoder so that the enclosing
// item can be prefixed with their total length.
func encodeSubItems(e *dicomio.Encoder, items []SubItem) []byte {
	sub := NewEncoder()
	for _, s := range items {
		s.Write(sub)
	}
	if err := sub.Error(); err != nil {
		e.SetError(err)
		return nil
	}
	return sub.Bytes()
}

type subItemWithName struct {
	Name string
}

func encodeSubItemWithName(e *dicomio.Encoder, itemType byte, name string) {
	encodeSubItemHeader(e, itemType, len(name))
	e.WriteString(name)
}

func decodeSubItemWithName(d *dicomio.Decoder, length uint16) string {
	return strings.TrimRight(d.ReadString(int(length)), " \x00")
}

// SubItemListString renders items on one line each.
func SubItemListString(items []SubItem) string {
	var b strings.Builder
	b.WriteString("[")
	for i, item := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(item.String())
	}
	b.WriteString("]")
	return b.String()
}

// SubItemUnsupported keeps an item this package does not interpret, so that
// it survives a decode and re-encode unchanged.
type SubItemUnsupported struct {
	Type byte
	Data []byte
}

func (item *SubItemUnsupported) Write(e *dicomio.Encoder) {
	encodeSubItemHeader(e, item.Type, len(item.Data))
	e.WriteBytes(item.Data)
}

func (item *SubItemUnsupported) String() string {
	return fmt.Sprintf("SubItemUnsupported{type: 0x%02x data: %d bytes}", item.Type, len(item.Data))
}
