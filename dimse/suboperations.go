package dimse

import (
	"fmt"

	"github.com/giesekow/go-dcmnet/commandset"
)

// SubOperations are the progress counters carried by C-GET and C-MOVE
// responses. Zero counters are omitted on the wire.
type SubOperations struct {
	Remaining uint16
	Completed uint16
	Failed    uint16
	Warning   uint16
}

func (s SubOperations) String() string {
	return fmt.Sprintf("remaining:%d completed:%d failed:%d warning:%d", s.Remaining, s.Completed, s.Failed, s.Warning)
}

func (s SubOperations) add(l *elementList) {
	l.addIf(s.Remaining != 0, commandset.NumberOfRemainingSuboperations, s.Remaining)
	l.addIf(s.Completed != 0, commandset.NumberOfCompletedSuboperations, s.Completed)
	l.addIf(s.Failed != 0, commandset.NumberOfFailedSuboperations, s.Failed)
	l.addIf(s.Warning != 0, commandset.NumberOfWarningSuboperations, s.Warning)
}

func (r *fieldReader) subOperations() SubOperations {
	return SubOperations{
		Remaining: r.u16(commandset.NumberOfRemainingSuboperations, "NumberOfRemainingSuboperations", OptionalElement),
		Completed: r.u16(commandset.NumberOfCompletedSuboperations, "NumberOfCompletedSuboperations", OptionalElement),
		Failed:    r.u16(commandset.NumberOfFailedSuboperations, "NumberOfFailedSuboperations", OptionalElement),
		Warning:   r.u16(commandset.NumberOfWarningSuboperations, "NumberOfWarningSuboperations", OptionalElement),
	}
}
