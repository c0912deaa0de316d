package dimse

import (
	"fmt"

	"github.com/giesekow/go-dcmnet/pdu"
)

// pdvHeaderSize is the PDV item length field plus the context ID and the
// message control header. P3.8 9.3.5.1.
const pdvHeaderSize = 6

// SplitIntoPDUs fragments an encoded command or data set into P_DATA_TF PDUs
// that each carry one PDV. maxPDULength is the peer's maximum PDU length
// (the variable field of P_DATA_TF, P3.8 D.1); 0 means the peer set no limit,
// in which case pdu.DefaultMaxPDUSize is used. Only the last PDV has the
// last-fragment bit set.
func SplitIntoPDUs(contextID byte, command bool, data []byte, maxPDULength uint32) ([]*pdu.PDataTf, error) {
	if maxPDULength == 0 {
		maxPDULength = pdu.DefaultMaxPDUSize
	}
	if maxPDULength <= pdvHeaderSize {
		return nil, fmt.Errorf("SplitIntoPDUs: max PDU length %d leaves no room for a PDV value", maxPDULength)
	}
	maxChunk := int(maxPDULength - pdvHeaderSize)
	var pdus []*pdu.PDataTf
	for {
		chunk := data
		if len(chunk) > maxChunk {
			chunk = data[:maxChunk]
		}
		data = data[len(chunk):]
		pdus = append(pdus, &pdu.PDataTf{Items: []pdu.PresentationDataValueItem{{
			ContextID: contextID,
			Command:   command,
			Last:      len(data) == 0,
			Value:     chunk,
		}}})
		if len(data) == 0 {
			return pdus, nil
		}
	}
}
