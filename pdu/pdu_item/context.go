package pdu_item

import (
	"fmt"

	"github.com/grailbio/go-dicom/dicomio"
	"github.com/grailbio/go-dicom/dicomuid"
)

// DICOMApplicationContextItemName is the only application context defined
// by the standard. P3.7 A.2.1.
const DICOMApplicationContextItemName = "1.2.840.10008.3.1.1.1"

// ApplicationContextItem names the application context. P3.8 9.3.2.1.
type ApplicationContextItem subItemWithName

func (v *ApplicationContextItem) Write(e *dicomio.Encoder) {
	encodeSubItemWithName(e, ItemTypeApplicationContext, v.Name)
}

func (v *ApplicationContextItem) String() string {
	return fmt.Sprintf("ApplicationContext{name: %q}", v.Name)
}

// AbstractSyntaxSubItem names the SOP class of a presentation context.
type AbstractSyntaxSubItem subItemWithName

func (v *AbstractSyntaxSubItem) Write(e *dicomio.Encoder) {
	encodeSubItemWithName(e, ItemTypeAbstractSyntax, v.Name)
}

func (v *AbstractSyntaxSubItem) String() string {
	return fmt.Sprintf("AbstractSyntax{name: %q}", dicomuid.UIDString(v.Name))
}

// TransferSyntaxSubItem names one transfer syntax of a presentation context.
type TransferSyntaxSubItem subItemWithName

func (v *TransferSyntaxSubItem) Write(e *dicomio.Encoder) {
	encodeSubItemWithName(e, ItemTypeTransferSyntax, v.Name)
}

func (v *TransferSyntaxSubItem) String() string {
	return fmt.Sprintf("TransferSyntax{name: %q}", dicomuid.UIDString(v.Name))
}

// PresentationContextResult is the outcome of negotiating one presentation
// context. P3.8 9.3.3.2, table 9-18.
type PresentationContextResult byte

const (
	PresentationContextAccepted                                    PresentationContextResult = 0
	PresentationContextUserRejection                               PresentationContextResult = 1
	PresentationContextProviderRejectionNoReason                   PresentationContextResult = 2
	PresentationContextProviderRejectionAbstractSyntaxNotSupported PresentationContextResult = 3
	PresentationContextProviderRejectionTransferSyntaxNotSupported PresentationContextResult = 4
)

func (r PresentationContextResult) String() string {
	switch r {
	case PresentationContextAccepted:
		return "accepted"
	case PresentationContextUserRejection:
		return "user-rejection"
	case PresentationContextProviderRejectionNoReason:
		return "provider-rejection(no reason)"
	case PresentationContextProviderRejectionAbstractSyntaxNotSupported:
		return "abstract-syntax-not-supported"
	case PresentationContextProviderRejectionTransferSyntaxNotSupported:
		return "transfer-syntaxes-not-supported"
	}
	return fmt.Sprintf("PresentationContextResult(%d)", byte(r))
}

// PresentationContextItem is a proposed (type 0x20) or answered (type 0x21)
// presentation context. P3.8 9.3.2.2, 9.3.3.2.
type PresentationContextItem struct {
	Type      byte // ItemTypePresentationContext*
	ContextID byte
	// Result is meaningful iff Type=0x21, zero else.
	Result PresentationContextResult
	// Items holds one AbstractSyntaxSubItem followed by
	// TransferSyntaxSubItems for a request, and one TransferSyntaxSubItem
	// for a response.
	Items []SubItem
}

// NewPresentationContextRequest builds a 0x20 item.
func NewPresentationContextRequest(contextID byte, abstractSyntax string, transferSyntaxes []string) *PresentationContextItem {
	items := []SubItem{&AbstractSyntaxSubItem{Name: abstractSyntax}}
	for _, ts := range transferSyntaxes {
		items = append(items, &TransferSyntaxSubItem{Name: ts})
	}
	return &PresentationContextItem{
		Type:      ItemTypePresentationContextRequest,
		ContextID: contextID,
		Items:     items,
	}
}

// AbstractSyntax returns the name of the first abstract syntax sub-item.
func (v *PresentationContextItem) AbstractSyntax() string {
	for _, item := range v.Items {
		if a, ok := item.(*AbstractSyntaxSubItem); ok {
			return a.Name
		}
	}
	return ""
}

// TransferSyntaxes returns the transfer syntax names in order.
func (v *PresentationContextItem) TransferSyntaxes() []string {
	var names []string
	for _, item := range v.Items {
		if t, ok := item.(*TransferSyntaxSubItem); ok {
			names = append(names, t.Name)
		}
	}
	return names
}

func decodePresentationContextItem(d *dicomio.Decoder, itemType byte) *PresentationContextItem {
	v := &PresentationContextItem{Type: itemType}
	v.ContextID = d.ReadByte()
	d.Skip(1)
	v.Result = PresentationContextResult(d.ReadByte())
	d.Skip(1)
	v.Items = decodeSubItems(d)
	if d.Error() == nil && v.ContextID%2 != 1 {
		d.SetErrorf("presentation context ID must be odd, but found %d", v.ContextID)
	}
	return v
}

func (v *PresentationContextItem) Write(e *dicomio.Encoder) {
	if v.Type != ItemTypePresentationContextRequest && v.Type != ItemTypePresentationContextResponse {
		e.SetErrorf("PresentationContextItem: bad type 0x%02x", v.Type)
		return
	}
	itemBytes := encodeSubItems(e, v.Items)
	encodeSubItemHeader(e, v.Type, 4+len(itemBytes))
	e.WriteByte(v.ContextID)
	e.WriteZeros(1)
	e.WriteByte(byte(v.Result))
	e.WriteZeros(1)
	e.WriteBytes(itemBytes)
}

func (v *PresentationContextItem) String() string {
	itemType := "rq"
	if v.Type == ItemTypePresentationContextResponse {
		itemType = "ac"
	}
	return fmt.Sprintf("PresentationContext%s{id: %d result: %v, items:%s}",
		itemType, v.ContextID, v.Result, SubItemListString(v.Items))
}
