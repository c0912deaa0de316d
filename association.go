// Package netdicom implements the DICOM upper layer protocol (P3.8) and the
// DIMSE-C services that run on top of it (P3.7).
//
// A service user calls Connect to open an association; a service provider
// hands accepted connections to ServiceProvider. Both ends then exchange
// DIMSE messages through an Association.
package netdicom

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giesekow/go-dcmnet/dataset"
	"github.com/giesekow/go-dcmnet/dimse"
	"github.com/giesekow/go-dcmnet/tag"
	"github.com/grailbio/go-dicom/dicomlog"
	"github.com/grailbio/go-dicom/dicomuid"
)

// Payload is one DIMSE message received on an association.
type Payload struct {
	ContextID         byte
	AbstractSyntaxUID string
	TransferSyntaxUID string
	Command           dimse.Message
	// Data is the raw data set, nil unless Command.HasData().
	Data []byte
	// DataSet is Data decoded in TransferSyntaxUID.
	DataSet *dataset.DataSet
}

// Association is an established association. Send, Receive, Release and
// Abort may be called from different goroutines; the statemachine
// serializes the writes so that the PDUs of two messages never interleave.
type Association struct {
	sm *stateMachine
	cm *contextManager

	abortOnce sync.Once

	lastMessageID atomic.Uint32

	// Request message ID -> context ID, for C-CANCEL.
	inflight sync.Map
}

func newAssociation(sm *stateMachine, cm *contextManager) *Association {
	return &Association{sm: sm, cm: cm}
}

// awaitHandshake blocks until the statemachine reports an established
// association, or the association ends.
func awaitHandshake(ctx context.Context, sm *stateMachine) (*Association, error) {
	select {
	case event, ok := <-sm.upcallCh:
		if !ok {
			if sm.closeErr == nil {
				return nil, ErrAssociationClosed
			}
			return nil, sm.closeErr
		}
		doassert(event.eventType == upcallEventHandshakeCompleted, event.eventType)
		return newAssociation(sm, event.cm), nil
	case <-ctx.Done():
		a := newAssociation(sm, sm.contextManager)
		a.Abort()
		return nil, ctx.Err()
	}
}

func (a *Association) closedError() error {
	<-a.sm.closedCh
	if a.sm.closeErr == nil {
		return ErrAssociationClosed
	}
	return fmt.Errorf("%w: %w", ErrAssociationClosed, a.sm.closeErr)
}

func (a *Association) isClosed() bool {
	select {
	case <-a.sm.closedCh:
		return true
	default:
		return false
	}
}

// Send transmits a DIMSE message on the presentation context negotiated for
// the command's affected SOP class. ds must be non-nil exactly when
// cmd.HasData(); it is encoded in the context's transfer syntax, after
// being sorted in place.
func (a *Association) Send(ctx context.Context, cmd dimse.Message, ds *dataset.DataSet) error {
	sopClassUID := dimse.AffectedSOPClassUID(cmd)
	if sopClassUID == "" {
		return fmt.Errorf("Association.Send: %v has no affected SOP class; use SendOnContext", cmd)
	}
	pc, err := a.cm.lookupByAbstractSyntaxUID(sopClassUID)
	if err != nil {
		return fmt.Errorf("Association.Send: %w", err)
	}
	return a.send(ctx, pc, cmd, ds)
}

// SendOnContext is Send on an explicit presentation context.
func (a *Association) SendOnContext(ctx context.Context, contextID byte, cmd dimse.Message, ds *dataset.DataSet) error {
	pc, err := a.cm.lookupByContextID(contextID)
	if err != nil {
		return fmt.Errorf("Association.SendOnContext: %w", err)
	}
	return a.send(ctx, pc, cmd, ds)
}

func (a *Association) send(ctx context.Context, pc PresentationContext, cmd dimse.Message, ds *dataset.DataSet) error {
	if cmd.HasData() != (ds != nil) {
		return fmt.Errorf("Association.Send: %v: HasData is %v but data set is present: %v", cmd, cmd.HasData(), ds != nil)
	}
	if a.isClosed() {
		return a.closedError()
	}
	peerMax := a.cm.peerMaxPDUSize
	cmdBytes, err := dimse.EncodeMessage(cmd)
	if err != nil {
		return fmt.Errorf("Association.Send: %w", err)
	}
	pdus, err := dimse.SplitIntoPDUs(pc.ID, true, cmdBytes, peerMax)
	if err != nil {
		return fmt.Errorf("Association.Send: %w", err)
	}
	if ds != nil {
		ts, err := dataset.LookupTransferSyntax(pc.AcceptedTransferSyntaxUID)
		if err != nil {
			return fmt.Errorf("Association.Send: %w", err)
		}
		ds.Sort()
		data, err := dataset.NewEncoder(tag.StandardDictionary).Encode(ds, ts)
		if err != nil {
			return fmt.Errorf("Association.Send: encoding data set for %v: %w", cmd, err)
		}
		dataPDUs, err := dimse.SplitIntoPDUs(pc.ID, false, data, peerMax)
		if err != nil {
			return fmt.Errorf("Association.Send: %w", err)
		}
		pdus = append(pdus, dataPDUs...)
	}
	result := make(chan error, 1)
	event := stateEvent{event: evt09, dimsePayload: &stateEventDIMSEPayload{command: cmd, pdus: pdus, result: result}}
	select {
	case a.sm.downcallCh <- event:
	case <-a.sm.closedCh:
		return a.closedError()
	case <-ctx.Done():
		return ctx.Err()
	}
	// Only requests that reached the statemachine can be cancelled.
	id := cmd.GetMessageID()
	track := cmd.CommandField()&0x8000 == 0 && cmd.CommandField() != dimse.CommandFieldCCancelRq
	if track {
		a.inflight.Store(id, pc.ID)
	}
	err = a.awaitSent(result)
	if err != nil && track {
		a.inflight.Delete(id)
	}
	if err != nil {
		return fmt.Errorf("Association.Send %v: %w", cmd, err)
	}
	return nil
}

// awaitSent waits for the statemachine to report the outcome of a P-DATA
// request.
func (a *Association) awaitSent(result <-chan error) error {
	select {
	case err := <-result:
		return err
	case <-a.sm.done:
		select {
		case err := <-result:
			if err == nil {
				return nil
			}
		default:
		}
		return a.closedError()
	}
}

// Receive waits for the next DIMSE message from the peer. If the data set
// cannot be decoded, the payload is returned together with the error, so
// that the caller can still answer the command.
func (a *Association) Receive(ctx context.Context) (*Payload, error) {
	var event upcallEvent
	select {
	case e, ok := <-a.sm.upcallCh:
		if !ok {
			return nil, a.closedError()
		}
		event = e
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	pc, err := a.cm.lookupByContextID(event.contextID)
	if err != nil {
		// The statemachine checked the context ID already.
		return nil, fmt.Errorf("Association.Receive: %w", err)
	}
	p := &Payload{
		ContextID:         pc.ID,
		AbstractSyntaxUID: pc.AbstractSyntaxUID,
		TransferSyntaxUID: pc.AcceptedTransferSyntaxUID,
		Command:           event.command,
		Data:              event.data,
	}
	if !event.command.HasData() {
		return p, nil
	}
	ts, err := dataset.LookupTransferSyntax(pc.AcceptedTransferSyntaxUID)
	if err != nil {
		return p, fmt.Errorf("Association.Receive: %w", err)
	}
	p.DataSet, err = dataset.NewDecoder(tag.StandardDictionary).Decode(event.data, ts)
	if err != nil {
		dicomlog.Vprintf(0, "dicom.Association(%s): failed to decode data set of %v in %v: %v",
			a.sm.label, event.command, dicomuid.UIDString(ts.UID), err)
		return p, fmt.Errorf("Association.Receive: %v: %w", event.command, err)
	}
	return p, nil
}

// Release performs an orderly release. If the peer does not answer within
// the release timeout, or ctx expires first, the association is aborted.
func (a *Association) Release(ctx context.Context) error {
	if a.isClosed() {
		return a.closedError()
	}
	select {
	case a.sm.downcallCh <- stateEvent{event: evt11}:
	case <-a.sm.closedCh:
		return a.closedError()
	case <-ctx.Done():
		a.Abort()
		return ctx.Err()
	}
	select {
	case <-a.sm.done:
	case <-ctx.Done():
		a.Abort()
		return ctx.Err()
	}
	if a.sm.closeErr != nil {
		return a.closedError()
	}
	return nil
}

// Abort sends A-ABORT and closes the connection without waiting for the
// peer. Calling it on a closed association returns ErrAssociationClosed.
func (a *Association) Abort() error {
	if a.isClosed() {
		return a.closedError()
	}
	a.abortOnce.Do(func() { close(a.sm.abortCh) })
	select {
	case <-a.sm.done:
	case <-time.After(a.sm.releaseTimeout()):
		// The statemachine is stuck in a write; unblock it.
		dicomlog.Vprintf(0, "dicom.Association(%s): abort did not complete, closing the connection", a.sm.label)
		if conn := a.sm.connection(); conn != nil {
			conn.Close()
		}
		<-a.sm.done
	}
	return nil
}

// PresentationContexts lists every context proposed on the association,
// accepted or not, ordered by ID.
func (a *Association) PresentationContexts() []PresentationContext {
	return a.cm.presentationContexts()
}

// PeerMaxPDULength is the largest P-DATA-TF the peer accepts. Zero means
// no limit.
func (a *Association) PeerMaxPDULength() uint32 { return a.cm.peerMaxPDUSize }

// MaxPDULength is the largest P-DATA-TF we accept.
func (a *Association) MaxPDULength() uint32 { return a.cm.maxPDUSize }

func (a *Association) CallingAETitle() string { return a.cm.callingAETitle }

func (a *Association) CalledAETitle() string { return a.cm.calledAETitle }

// PeerImplementationClassUID is the implementation class UID the peer
// advertised, if any.
func (a *Association) PeerImplementationClassUID() string { return a.cm.peerImplementationClassUID }

func (a *Association) PeerImplementationVersionName() string {
	return a.cm.peerImplementationVersionName
}

// NextMessageID allocates a DIMSE message ID. IDs wrap at 0xFFFF and skip
// zero.
func (a *Association) NextMessageID() dimse.MessageID {
	for {
		if id := dimse.MessageID(a.lastMessageID.Add(1)); id != 0 {
			return id
		}
	}
}

// Err returns nil while the association is usable and after an orderly
// release; otherwise it returns why the association ended.
func (a *Association) Err() error {
	if !a.isClosed() {
		return nil
	}
	return a.sm.closeErr
}

// contextOf returns the context a request was sent on.
func (a *Association) contextOf(id dimse.MessageID) (byte, error) {
	v, ok := a.inflight.Load(id)
	if !ok {
		return 0, fmt.Errorf("no outstanding request with message ID %d: %w", id, ErrNoPresentationContext)
	}
	return v.(byte), nil
}

func (a *Association) String() string {
	return fmt.Sprintf("association(%s %s->%s)", a.sm.label, a.cm.callingAETitle, a.cm.calledAETitle)
}
