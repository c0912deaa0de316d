// Package commandset lists the command group (0000,xxxx) tags carried by
// DIMSE messages. P3.7 E.1.
package commandset

import "github.com/giesekow/go-dcmnet/tag"

var (
	CommandGroupLength                   = tag.New(0x0000, 0x0000)
	AffectedSOPClassUID                  = tag.New(0x0000, 0x0002)
	RequestedSOPClassUID                 = tag.New(0x0000, 0x0003)
	CommandField                         = tag.New(0x0000, 0x0100)
	MessageID                            = tag.New(0x0000, 0x0110)
	MessageIDBeingRespondedTo            = tag.New(0x0000, 0x0120)
	MoveDestination                      = tag.New(0x0000, 0x0600)
	Priority                             = tag.New(0x0000, 0x0700)
	CommandDataSetType                   = tag.New(0x0000, 0x0800)
	Status                               = tag.New(0x0000, 0x0900)
	OffendingElement                     = tag.New(0x0000, 0x0901)
	ErrorComment                         = tag.New(0x0000, 0x0902)
	ErrorID                              = tag.New(0x0000, 0x0903)
	AffectedSOPInstanceUID               = tag.New(0x0000, 0x1000)
	RequestedSOPInstanceUID              = tag.New(0x0000, 0x1001)
	NumberOfRemainingSuboperations       = tag.New(0x0000, 0x1020)
	NumberOfCompletedSuboperations       = tag.New(0x0000, 0x1021)
	NumberOfFailedSuboperations          = tag.New(0x0000, 0x1022)
	NumberOfWarningSuboperations         = tag.New(0x0000, 0x1023)
	MoveOriginatorApplicationEntityTitle = tag.New(0x0000, 0x1030)
	MoveOriginatorMessageID              = tag.New(0x0000, 0x1031)
)

// Dictionary resolves the command tags above. Command sets are always
// Implicit VR, so this is what gives their elements a VR on decode.
var Dictionary = tag.NewMapDictionary(
	tag.Entry{Tag: CommandGroupLength, VR: "UL", VM: "1", Name: "CommandGroupLength"},
	tag.Entry{Tag: AffectedSOPClassUID, VR: "UI", VM: "1", Name: "AffectedSOPClassUID"},
	tag.Entry{Tag: RequestedSOPClassUID, VR: "UI", VM: "1", Name: "RequestedSOPClassUID"},
	tag.Entry{Tag: CommandField, VR: "US", VM: "1", Name: "CommandField"},
	tag.Entry{Tag: MessageID, VR: "US", VM: "1", Name: "MessageID"},
	tag.Entry{Tag: MessageIDBeingRespondedTo, VR: "US", VM: "1", Name: "MessageIDBeingRespondedTo"},
	tag.Entry{Tag: MoveDestination, VR: "AE", VM: "1", Name: "MoveDestination"},
	tag.Entry{Tag: Priority, VR: "US", VM: "1", Name: "Priority"},
	tag.Entry{Tag: CommandDataSetType, VR: "US", VM: "1", Name: "CommandDataSetType"},
	tag.Entry{Tag: Status, VR: "US", VM: "1", Name: "Status"},
	tag.Entry{Tag: OffendingElement, VR: "AT", VM: "1-n", Name: "OffendingElement"},
	tag.Entry{Tag: ErrorComment, VR: "LO", VM: "1", Name: "ErrorComment"},
	tag.Entry{Tag: ErrorID, VR: "US", VM: "1", Name: "ErrorID"},
	tag.Entry{Tag: AffectedSOPInstanceUID, VR: "UI", VM: "1", Name: "AffectedSOPInstanceUID"},
	tag.Entry{Tag: RequestedSOPInstanceUID, VR: "UI", VM: "1", Name: "RequestedSOPInstanceUID"},
	tag.Entry{Tag: NumberOfRemainingSuboperations, VR: "US", VM: "1", Name: "NumberOfRemainingSuboperations"},
	tag.Entry{Tag: NumberOfCompletedSuboperations, VR: "US", VM: "1", Name: "NumberOfCompletedSuboperations"},
	tag.Entry{Tag: NumberOfFailedSuboperations, VR: "US", VM: "1", Name: "NumberOfFailedSuboperations"},
	tag.Entry{Tag: NumberOfWarningSuboperations, VR: "US", VM: "1", Name: "NumberOfWarningSuboperations"},
	tag.Entry{Tag: MoveOriginatorApplicationEntityTitle, VR: "AE", VM: "1", Name: "MoveOriginatorApplicationEntityTitle"},
	tag.Entry{Tag: MoveOriginatorMessageID, VR: "US", VM: "1", Name: "MoveOriginatorMessageID"},
)
