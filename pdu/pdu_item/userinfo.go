package pdu_item

import (
	"fmt"

	"github.com/grailbio/go-dicom/dicomio"
)

// UserInformationItem wraps the user information sub-items. P3.8 9.3.2.3
// and Annex D.
type UserInformationItem struct {
	Items []SubItem
}

func decodeUserInformationItem(d *dicomio.Decoder) *UserInformationItem {
	return &UserInformationItem{Items: decodeSubItems(d)}
}

func (v *UserInformationItem) Write(e *dicomio.Encoder) {
	itemBytes := encodeSubItems(e, v.Items)
	encodeSubItemHeader(e, ItemTypeUserInformation, len(itemBytes))
	e.WriteBytes(itemBytes)
}

func (v *UserInformationItem) String() string {
	return fmt.Sprintf("UserInformation{items: %s}", SubItemListString(v.Items))
}

// UserInformationMaximumLengthItem advertises the largest P-DATA-TF body
// the sender accepts. Zero means no limit. P3.8 D.1.
type UserInformationMaximumLengthItem struct {
	MaximumLengthReceived uint32
}

func decodeUserInformationMaximumLengthItem(d *dicomio.Decoder, length uint16) *UserInformationMaximumLengthItem {
	if length != 4 {
		d.SetErrorf("maximum length item: length %d, want 4", length)
		return &UserInformationMaximumLengthItem{}
	}
	return &UserInformationMaximumLengthItem{MaximumLengthReceived: d.ReadUInt32()}
}

func (v *UserInformationMaximumLengthItem) Write(e *dicomio.Encoder) {
	encodeSubItemHeader(e, ItemTypeUserInformationMaximumLength, 4)
	e.WriteUInt32(v.MaximumLengthReceived)
}

func (v *UserInformationMaximumLengthItem) String() string {
	return fmt.Sprintf("UserInformationMaximumLength{%d}", v.MaximumLengthReceived)
}

// ImplementationClassUIDSubItem identifies the peer implementation. P3.7
// D.3.3.2.1.
type ImplementationClassUIDSubItem subItemWithName

func (v *ImplementationClassUIDSubItem) Write(e *dicomio.Encoder) {
	encodeSubItemWithName(e, ItemTypeImplementationClassUID, v.Name)
}

func (v *ImplementationClassUIDSubItem) String() string {
	return fmt.Sprintf("ImplementationClassUID{name: %q}", v.Name)
}

// ImplementationVersionNameSubItem is a free-form version string of at most
// 16 bytes. P3.7 D.3.3.2.3.
type ImplementationVersionNameSubItem subItemWithName

func (v *ImplementationVersionNameSubItem) Write(e *dicomio.Encoder) {
	encodeSubItemWithName(e, ItemTypeImplementationVersionName, v.Name)
}

func (v *ImplementationVersionNameSubItem) String() string {
	return fmt.Sprintf("ImplementationVersionName{name: %q}", v.Name)
}

// AsynchronousOperationsWindowSubItem negotiates outstanding operations.
// P3.7 D.3.3.3.1.
type AsynchronousOperationsWindowSubItem struct {
	MaxOpsInvoked   uint16
	MaxOpsPerformed uint16
}

func decodeAsynchronousOperationsWindowSubItem(d *dicomio.Decoder, length uint16) *AsynchronousOperationsWindowSubItem {
	if length != 4 {
		d.SetErrorf("asynchronous operations window item: length %d, want 4", length)
		return &AsynchronousOperationsWindowSubItem{}
	}
	return &AsynchronousOperationsWindowSubItem{
		MaxOpsInvoked:   d.ReadUInt16(),
		MaxOpsPerformed: d.ReadUInt16(),
	}
}

func (v *AsynchronousOperationsWindowSubItem) Write(e *dicomio.Encoder) {
	encodeSubItemHeader(e, ItemTypeAsynchronousOperationsWindow, 2*2)
	e.WriteUInt16(v.MaxOpsInvoked)
	e.WriteUInt16(v.MaxOpsPerformed)
}

func (v *AsynchronousOperationsWindowSubItem) String() string {
	return fmt.Sprintf("AsynchronousOperationsWindow{invoked: %d performed: %d}",
		v.MaxOpsInvoked, v.MaxOpsPerformed)
}

// RoleSelectionSubItem proposes SCU/SCP roles for one SOP class. P3.7
// D.3.3.4.
type RoleSelectionSubItem struct {
	SOPClassUID string
	SCURole     byte
	SCPRole     byte
}

func decodeRoleSelectionSubItem(d *dicomio.Decoder) *RoleSelectionSubItem {
	uidLen := d.ReadUInt16()
	return &RoleSelectionSubItem{
		SOPClassUID: decodeSubItemWithName(d, uidLen),
		SCURole:     d.ReadByte(),
		SCPRole:     d.ReadByte(),
	}
}

func (v *RoleSelectionSubItem) Write(e *dicomio.Encoder) {
	encodeSubItemHeader(e, ItemTypeRoleSelection, 2+len(v.SOPClassUID)+2)
	e.WriteUInt16(uint16(len(v.SOPClassUID)))
	e.WriteString(v.SOPClassUID)
	e.WriteByte(v.SCURole)
	e.WriteByte(v.SCPRole)
}

func (v *RoleSelectionSubItem) String() string {
	return fmt.Sprintf("RoleSelection{sopclassuid: %v, scu: %v, scp: %v}", v.SOPClassUID, v.SCURole, v.SCPRole)
}
