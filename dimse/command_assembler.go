package dimse

import (
	"errors"
	"fmt"

	"github.com/giesekow/go-dcmnet/pdu"
)

// ErrProtocolViolation reports a P-DATA-TF stream that cannot belong to a
// well-formed DIMSE message. The association must be aborted.
var ErrProtocolViolation = errors.New("DIMSE protocol violation")

// CommandAssembler is a helper that assembles a DIMSE command message and data
// payload from a sequence of P_DATA_TF PDUs.
type CommandAssembler struct {
	started        bool
	contextID      byte
	commandBytes   []byte
	command        Message
	dataBytes      []byte
	readAllCommand bool
	readAllData    bool
}

func violation(format string, args ...any) error {
	return fmt.Errorf("P_DATA_TF: %s: %w", fmt.Sprintf(format, args...), ErrProtocolViolation)
}

// AddDataPDU is to be called for each P_DATA_TF PDU received from the
// network. Once the command, and the data set when the command announces
// one, are complete it returns the context ID, the decoded command and the
// raw data set bytes, and resets itself for the next message. While more
// fragments are needed it returns <0, nil, nil, nil>.
func (a *CommandAssembler) AddDataPDU(p *pdu.PDataTf) (byte, Message, []byte, error) {
	for i, item := range p.Items {
		if err := a.addItem(item); err != nil {
			*a = CommandAssembler{}
			return 0, nil, nil, err
		}
		if !a.complete() {
			continue
		}
		if i != len(p.Items)-1 {
			*a = CommandAssembler{}
			return 0, nil, nil, violation("%d items after the end of a message", len(p.Items)-1-i)
		}
		contextID, command, data := a.contextID, a.command, a.dataBytes
		*a = CommandAssembler{}
		return contextID, command, data, nil
	}
	return 0, nil, nil, nil
}

func (a *CommandAssembler) addItem(item pdu.PresentationDataValueItem) error {
	if item.ContextID%2 == 0 {
		return violation("invalid context ID %d", item.ContextID)
	}
	if !a.started {
		a.started = true
		a.contextID = item.ContextID
	} else if a.contextID != item.ContextID {
		return violation("mixed context: %d %d", a.contextID, item.ContextID)
	}
	if item.Command {
		if a.readAllCommand {
			return violation("command fragment after the last command fragment")
		}
		a.commandBytes = append(a.commandBytes, item.Value...)
		if !item.Last {
			return nil
		}
		a.readAllCommand = true
		command, err := DecodeMessage(a.commandBytes)
		if err != nil {
			return fmt.Errorf("P_DATA_TF: failed to parse command bytes: %v: %w", err, ErrProtocolViolation)
		}
		a.command = command
		return nil
	}
	if !a.readAllCommand {
		return violation("data fragment before the command is complete")
	}
	if !a.command.HasData() {
		return violation("data fragment for %v, which announces no data set", a.command)
	}
	if a.readAllData {
		return violation("data fragment after the last data fragment")
	}
	a.dataBytes = append(a.dataBytes, item.Value...)
	if item.Last {
		a.readAllData = true
	}
	return nil
}

func (a *CommandAssembler) complete() bool {
	if !a.readAllCommand {
		return false
	}
	return !a.command.HasData() || a.readAllData
}
