package netdicom

// Implements the network statemachine, as defined in P3.8 9.2.3.
// http://dicom.nema.org/medical/dicom/current/output/pdf/part08.pdf

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giesekow/go-dcmnet/dimse"
	"github.com/giesekow/go-dcmnet/pdu"
	"github.com/grailbio/go-dicom/dicomlog"
)

type stateType int

const (
	sta01 stateType = iota + 1
	sta02
	sta03
	sta04
	sta05
	sta06
	sta07
	sta08
	sta09
	sta10
	sta11
	sta12
	sta13
)

var stateDescriptions = map[stateType]string{
	sta01: "Idle",
	sta02: "Transport connection open (Awaiting A-ASSOCIATE-RQ PDU)",
	sta03: "Awaiting local A-ASSOCIATE response primitive (from local user)",
	sta04: "Awaiting transport connection opening to complete (from local transport service)",
	sta05: "Awaiting A-ASSOCIATE-AC or A-ASSOCIATE-RJ PDU",
	sta06: "Association established and ready for data transfer",
	sta07: "Awaiting A-RELEASE-RP PDU",
	sta08: "Awaiting local A-RELEASE response primitive (from local user)",
	sta09: "Release collision requestor side; awaiting A-RELEASE response (from local user)",
	sta10: "Release collision acceptor side; awaiting A-RELEASE-RP PDU",
	sta11: "Release collision requestor side; awaiting A-RELEASE-RP PDU",
	sta12: "Release collision acceptor side; awaiting A-RELEASE response primitive (from local user)",
	sta13: "Awaiting Transport Connection Close Indication (Association no longer exists)",
}

func (s *stateType) String() string {
	description, ok := stateDescriptions[*s]
	if !ok {
		description = "Unknown state"
	}
	return fmt.Sprintf("sta%02d(%s)", int(*s), description)
}

type eventType int

const (
	evt01 eventType = iota + 1
	evt02
	evt03
	evt04
	evt05
	evt06
	evt07
	evt08
	evt09
	evt10
	evt11
	evt12
	evt13
	evt14
	evt15
	evt16
	evt17
	evt18
	evt19
)

var eventDescriptions = map[eventType]string{
	evt01: "A-ASSOCIATE request (local user)",
	evt02: "Connection established (for service user)",
	evt03: "A-ASSOCIATE-AC PDU (received on transport connection)",
	evt04: "A-ASSOCIATE-RJ PDU (received on transport connection)",
	evt05: "Connection accepted (for service provider)",
	evt06: "A-ASSOCIATE-RQ PDU (on tranport connection)",
	evt07: "A-ASSOCIATE response primitive (accept)",
	evt08: "A-ASSOCIATE response primitive (reject)",
	evt09: "P-DATA request primitive",
	evt10: "P-DATA-TF PDU (on transport connection)",
	evt11: "A-RELEASE request primitive",
	evt12: "A-RELEASE-RQ PDU (on transport)",
	evt13: "A-RELEASE-RP PDU (on transport)",
	evt14: "A-RELEASE response primitive",
	evt15: "A-ABORT request primitive",
	evt16: "A-ABORT PDU (on transport)",
	evt17: "Transport connection closed indication (local transport service)",
	evt18: "ARTIM timer expired (Association reject/release timer)",
	evt19: "Unrecognized or invalid PDU received",
}

func (e *eventType) String() string {
	description, ok := eventDescriptions[*e]
	if !ok {
		description = "Unknown event"
	}
	return fmt.Sprintf("evt%02d(%s)", int(*e), description)
}

type stateAction struct {
	Name        string
	Description string
	Callback    func(sm *stateMachine, event stateEvent) stateType
}

func (s *stateAction) String() string {
	return fmt.Sprintf("%s(%s)", s.Name, s.Description)
}

var actionAe1 = &stateAction{"AE-1",
	"Issue TRANSPORT CONNECT request primitive to local transport service",
	func(sm *stateMachine, event stateEvent) stateType {
		// Nothing to do now. We expect Connect to dial a connection and emit either
		// evt02 (on success) or evt17 (on failure)
		return sta04
	}}

var actionAe2 = &stateAction{"AE-2", "Connection established on the user side. Send A-ASSOCIATE-RQ-PDU",
	func(sm *stateMachine, event stateEvent) stateType {
		doassert(event.conn != nil)
		sm.setConn(event.conn)
		go sm.networkReaderThread(event.conn)
		items, err := sm.contextManager.generateAssociateRequest(sm.userParams)
		if err != nil {
			dicomlog.Vprintf(0, "dicom.stateMachine(%s): AE-2: %v", sm.label, err)
			sm.closeConnection(err)
			return sta01
		}
		sm.sendPDU(&pdu.AAssociateRQ{
			ProtocolVersion: pdu.CurrentProtocolVersion,
			CalledAETitle:   sm.userParams.CalledAETitle,
			CallingAETitle:  sm.userParams.CallingAETitle,
			Items:           items,
		})
		sm.startTimer(sm.userParams.AssociationTimeout)
		return sta05
	}}

var actionAe3 = &stateAction{"AE-3", "Issue A-ASSOCIATE confirmation (accept) primitive",
	func(sm *stateMachine, event stateEvent) stateType {
		sm.stopTimer()
		v := event.pdu.(*pdu.AAssociateAC)
		err := sm.contextManager.onAssociateResponse(v.Items)
		if err == nil {
			dicomlog.Vprintf(1, "dicom.stateMachine(%s): association established with %s", sm.label, v.CalledAETitle)
			sm.sendUpcall(upcallEvent{eventType: upcallEventHandshakeCompleted, cm: sm.contextManager})
			return sta06
		}
		dicomlog.Vprintf(0, "dicom.stateMachine(%s): AE-3: %v", sm.label, err)
		reason := pdu.AbortReasonInvalidPDUParameterValue
		if errors.Is(err, ErrNoPresentationContext) {
			reason = pdu.AbortReasonNotSpecified
		}
		return sm.providerAbort(reason, err)
	}}

var actionAe4 = &stateAction{"AE-4", "Issue A-ASSOCIATE confirmation (reject) primitive and close transport connection",
	func(sm *stateMachine, event stateEvent) stateType {
		sm.stopTimer()
		v := event.pdu.(*pdu.AAssociateRj)
		dicomlog.Vprintf(0, "dicom.stateMachine(%s): association rejected: %v", sm.label, v)
		sm.closeConnection(&RejectError{Result: v.Result, Source: v.Source, Reason: v.Reason})
		return sta01
	}}

var actionAe5 = &stateAction{"AE-5", "Issue Transport connection response primitive; start ARTIM timer",
	func(sm *stateMachine, event stateEvent) stateType {
		doassert(event.conn != nil)
		sm.setConn(event.conn)
		sm.startTimer(sm.providerParams.AssociationTimeout)
		go sm.networkReaderThread(event.conn)
		return sta02
	}}

var actionAe6 = &stateAction{"AE-6", `Stop ARTIM timer and if A-ASSOCIATE-RQ acceptable by "
service-dul: issue A-ASSOCIATE indication primitive
otherwise issue A-ASSOCIATE-RJ-PDU and start ARTIM timer`,
	func(sm *stateMachine, event stateEvent) stateType {
		sm.stopTimer()
		v := event.pdu.(*pdu.AAssociateRQ)
		sm.contextManager.calledAETitle = v.CalledAETitle
		sm.contextManager.callingAETitle = v.CallingAETitle
		if v.ProtocolVersion&pdu.CurrentProtocolVersion == 0 {
			dicomlog.Vprintf(0, "dicom.stateMachine(%s): Wrong remote protocol version 0x%x", sm.label, v.ProtocolVersion)
			rj := &pdu.AAssociateRj{
				Result: pdu.ResultRejectedPermanent,
				Source: pdu.SourceULServiceProviderACSE,
				Reason: pdu.RejectReasonProtocolVersionNotSupported,
			}
			sm.sendPDU(rj)
			sm.indicateClosed(&RejectError{Result: rj.Result, Source: rj.Source, Reason: rj.Reason})
			sm.startTimer(sm.providerParams.AssociationTimeout)
			return sta13
		}
		reject := func(reason pdu.RejectReasonType, err error) stateType {
			dicomlog.Vprintf(0, "dicom.stateMachine(%s): rejecting A-ASSOCIATE-RQ from %s: %v", sm.label, v.CallingAETitle, err)
			sm.raise(stateEvent{
				event: evt08,
				pdu: &pdu.AAssociateRj{
					Result: pdu.ResultRejectedPermanent,
					Source: pdu.SourceULServiceUser,
					Reason: reason,
				},
			})
			return sta03
		}
		if err := checkApplicationContext(v.Items); err != nil {
			return reject(pdu.RejectReasonApplicationContextNameNotSupported, err)
		}
		if ae := sm.providerParams.AETitle; ae != "" && v.CalledAETitle != ae {
			return reject(pdu.RejectReasonCalledAETitleNotRecognized, fmt.Errorf("called AE title %q, expected %q", v.CalledAETitle, ae))
		}
		responses, err := sm.contextManager.onAssociateRequest(v.Items, sm.providerParams)
		if err != nil {
			return reject(pdu.RejectReasonNone, err)
		}
		sm.raise(stateEvent{
			event: evt07,
			pdu: &pdu.AAssociateAC{
				ProtocolVersion: pdu.CurrentProtocolVersion,
				CalledAETitle:   v.CalledAETitle,
				CallingAETitle:  v.CallingAETitle,
				Items:           responses,
			},
		})
		return sta03
	}}

var actionAe7 = &stateAction{"AE-7", "Send A-ASSOCIATE-AC PDU",
	func(sm *stateMachine, event stateEvent) stateType {
		sm.sendPDU(event.pdu.(*pdu.AAssociateAC))
		dicomlog.Vprintf(1, "dicom.stateMachine(%s): association established with %s", sm.label, sm.contextManager.callingAETitle)
		sm.sendUpcall(upcallEvent{eventType: upcallEventHandshakeCompleted, cm: sm.contextManager})
		return sta06
	}}

var actionAe8 = &stateAction{"AE-8", "Send A-ASSOCIATE-RJ PDU and start ARTIM timer",
	func(sm *stateMachine, event stateEvent) stateType {
		v := event.pdu.(*pdu.AAssociateRj)
		sm.sendPDU(v)
		sm.indicateClosed(&RejectError{Result: v.Result, Source: v.Source, Reason: v.Reason})
		sm.startTimer(sm.providerParams.AssociationTimeout)
		return sta13
	}}

// sendDIMSE writes the PDUs of one DIMSE message and reports the outcome to
// the caller of Association.Send.
func (sm *stateMachine) sendDIMSE(event stateEvent) {
	payload := event.dimsePayload
	doassert(payload != nil)
	dicomlog.Vprintf(1, "dicom.stateMachine(%s): Send DIMSE msg: %v (%d PDUs)", sm.label, payload.command, len(payload.pdus))
	for _, p := range payload.pdus {
		if err := sm.sendPDU(p); err != nil {
			payload.reply(err)
			return
		}
	}
	payload.reply(nil)
}

// Data transfer related actions
var actionDt1 = &stateAction{"DT-1", "Send P-DATA-TF PDU",
	func(sm *stateMachine, event stateEvent) stateType {
		sm.sendDIMSE(event)
		return sta06
	}}

var actionDt2 = &stateAction{"DT-2", "Send P-DATA indication primitive",
	func(sm *stateMachine, event stateEvent) stateType {
		if err := sm.assemble(event.pdu.(*pdu.PDataTf)); err != nil {
			dicomlog.Vprintf(0, "dicom.stateMachine(%s): Failed to assemble data: %v", sm.label, err)
			return sm.providerAbort(pdu.AbortReasonInvalidPDUParameterValue, err)
		}
		return sta06
	}}

// assemble feeds one P-DATA-TF to the command assembler and passes a
// completed message up.
func (sm *stateMachine) assemble(v *pdu.PDataTf) error {
	contextID, command, data, err := sm.commandAssembler.AddDataPDU(v)
	if err != nil {
		return err
	}
	if command == nil { // More fragments to come.
		return nil
	}
	if _, err := sm.contextManager.lookupByContextID(contextID); err != nil {
		return fmt.Errorf("%v: %w", err, dimse.ErrProtocolViolation)
	}
	dicomlog.Vprintf(1, "dicom.stateMachine(%s): DIMSE request: %v", sm.label, command)
	sm.sendUpcall(upcallEvent{
		eventType: upcallEventData,
		cm:        sm.contextManager,
		contextID: contextID,
		command:   command,
		data:      data,
	})
	return nil
}

// Assocation Release related actions
var actionAr1 = &stateAction{"AR-1", "Send A-RELEASE-RQ PDU",
	func(sm *stateMachine, event stateEvent) stateType {
		sm.sendPDU(&pdu.AReleaseRq{})
		sm.startTimer(sm.releaseTimeout())
		return sta07
	}}

var actionAr2 = &stateAction{"AR-2", "Issue A-RELEASE indication primitive",
	func(sm *stateMachine, event stateEvent) stateType {
		// Release requests are always granted.
		sm.indicateClosed(nil)
		sm.raise(stateEvent{event: evt14})
		return sta08
	}}

var actionAr3 = &stateAction{"AR-3", "Issue A-RELEASE confirmation primitive and close transport connection",
	func(sm *stateMachine, event stateEvent) stateType {
		sm.stopTimer()
		sm.closeConnection(nil)
		return sta01
	}}

var actionAr4 = &stateAction{"AR-4", "Issue A-RELEASE-RP PDU and start ARTIM timer",
	func(sm *stateMachine, event stateEvent) stateType {
		sm.sendPDU(&pdu.AReleaseRp{})
		sm.startTimer(sm.releaseTimeout())
		return sta13
	}}

var actionAr5 = &stateAction{"AR-5", "Stop ARTIM timer",
	func(sm *stateMachine, event stateEvent) stateType {
		sm.stopTimer()
		sm.closeConnection(nil)
		return sta01
	}}

var actionAr6 = &stateAction{"AR-6", "Issue P-DATA indication",
	func(sm *stateMachine, event stateEvent) stateType {
		if err := sm.assemble(event.pdu.(*pdu.PDataTf)); err != nil {
			dicomlog.Vprintf(0, "dicom.stateMachine(%s): Failed to assemble data: %v", sm.label, err)
			return sm.providerAbort(pdu.AbortReasonInvalidPDUParameterValue, err)
		}
		return sta07
	}}

var actionAr7 = &stateAction{"AR-7", "Issue P-DATA-TF PDU",
	func(sm *stateMachine, event stateEvent) stateType {
		sm.sendDIMSE(event)
		sm.raise(stateEvent{event: evt14})
		return sta08
	}}

var actionAr8 = &stateAction{"AR-8", "Issue A-RELEASE indication (release collision): if association-requestor, next state is Sta09, if not next state is Sta10",
	func(sm *stateMachine, event stateEvent) stateType {
		if sm.isUser {
			sm.raise(stateEvent{event: evt14})
			return sta09
		}
		return sta10
	}}

var actionAr9 = &stateAction{"AR-9", "Send A-RELEASE-RP PDU",
	func(sm *stateMachine, event stateEvent) stateType {
		sm.sendPDU(&pdu.AReleaseRp{})
		return sta11
	}}

var actionAr10 = &stateAction{"AR-10", "Issue A-RELEASE confimation primitive",
	func(sm *stateMachine, event stateEvent) stateType {
		sm.raise(stateEvent{event: evt14})
		return sta12
	}}

// P3.8 has no P-DATA request after our own A-RELEASE-RQ. Fail the Send and
// keep waiting for the release response.
var actionAr11 = &stateAction{"AR-11", "Refuse P-DATA request primitive while awaiting A-RELEASE-RP",
	func(sm *stateMachine, event stateEvent) stateType {
		dicomlog.Vprintf(0, "dicom.stateMachine(%s): refusing %v in %v", sm.label, event.dimsePayload.command, sm.currentState.String())
		event.replyIfPending(ErrReleasePending)
		return sm.currentState
	}}

// Association abort related actions
var actionAa1 = &stateAction{"AA-1", "Send A-ABORT PDU (service-user source) and close transport connection",
	func(sm *stateMachine, event stateEvent) stateType {
		diagnostic := pdu.AbortReasonNotSpecified
		if sm.currentState == sta02 {
			diagnostic = pdu.AbortReasonUnexpectedPDU
		}
		sm.stopTimer()
		sm.sendPDU(&pdu.AAbort{Source: pdu.AbortSourceServiceUser, Reason: diagnostic})
		event.replyIfPending(ErrAssociationAborted)
		sm.closeConnection(&AbortError{Source: pdu.AbortSourceServiceUser, Reason: diagnostic, Local: true, Err: event.err})
		return sta01
	}}

var actionAa2 = &stateAction{"AA-2", "Stop ARTIM timer if running. Close transport connection",
	func(sm *stateMachine, event stateEvent) stateType {
		sm.stopTimer()
		cause := event.err
		if v, ok := event.pdu.(*pdu.AAbort); ok {
			cause = &AbortError{Source: v.Source, Reason: v.Reason}
		}
		event.replyIfPending(ErrAssociationAborted)
		sm.closeConnection(cause)
		return sta01
	}}

var actionAa3 = &stateAction{"AA-3", "If (service-user initiated abort): issue A-ABORT indication and close transport connection, otherwise (service-dul initiated abort): issue A-P-ABORT indication and close transport connection",
	func(sm *stateMachine, event stateEvent) stateType {
		v := event.pdu.(*pdu.AAbort)
		dicomlog.Vprintf(0, "dicom.stateMachine(%s): Association aborted by peer: %v", sm.label, v)
		sm.stopTimer()
		sm.closeConnection(&AbortError{Source: v.Source, Reason: v.Reason})
		return sta01
	}}

var actionAa4 = &stateAction{"AA-4", "Issue A-P-ABORT indication primitive",
	func(sm *stateMachine, event stateEvent) stateType {
		sm.stopTimer()
		sm.closeConnection(transportError(event.err))
		return sta01
	}}

var actionAa5 = &stateAction{"AA-5", "Stop ARTIM timer",
	func(sm *stateMachine, event stateEvent) stateType {
		sm.stopTimer()
		sm.closeConnection(transportError(event.err))
		return sta01
	}}

var actionAa6 = &stateAction{"AA-6", "Ignore PDU",
	func(sm *stateMachine, event stateEvent) stateType {
		event.replyIfPending(ErrAssociationClosed)
		return sta13
	}}

var actionAa7 = &stateAction{"AA-7", "Send A-ABORT PDU",
	func(sm *stateMachine, event stateEvent) stateType {
		event.replyIfPending(ErrAssociationClosed)
		sm.sendPDU(&pdu.AAbort{Source: pdu.AbortSourceServiceProvider, Reason: pdu.AbortReasonUnexpectedPDU})
		return sta13
	}}

var actionAa8 = &stateAction{"AA-8", "Send A-ABORT PDU (service-dul source), issue an A-P-ABORT indication and start ARTIM timer",
	func(sm *stateMachine, event stateEvent) stateType {
		reason := pdu.AbortReasonNotSpecified
		err := event.err
		switch {
		case event.event == evt19:
			// The network reader has stopped, so nobody would see the peer
			// close the connection. Close it now.
			reason = pdu.AbortReasonInvalidPDUParameterValue
			sm.stopTimer()
			sm.sendPDU(&pdu.AAbort{Source: pdu.AbortSourceServiceProvider, Reason: reason})
			sm.closeConnection(&AbortError{Source: pdu.AbortSourceServiceProvider, Reason: reason, Local: true, Err: err})
			return sta01
		case event.pdu != nil:
			reason = pdu.AbortReasonUnexpectedPDU
			err = fmt.Errorf("unexpected %v in %v", event.pdu.Type(), sm.currentState.String())
		}
		return sm.providerAbort(reason, err)
	}}

// The ARTIM timer expired while waiting for A-RELEASE-RP. P3.8 lets the
// requestor wait forever here; we abort instead.
var actionReleaseTimeout = &stateAction{"AR-T", "Release timer expired: send A-ABORT PDU and close transport connection",
	func(sm *stateMachine, event stateEvent) stateType {
		dicomlog.Vprintf(0, "dicom.stateMachine(%s): no A-RELEASE-RP within %v, aborting", sm.label, sm.releaseTimeout())
		return actionAa1.Callback(sm, event)
	}}

// providerAbort sends a service-provider A-ABORT, reports err as the cause
// and waits for the peer to close the connection.
func (sm *stateMachine) providerAbort(reason pdu.AbortReasonType, err error) stateType {
	sm.sendPDU(&pdu.AAbort{Source: pdu.AbortSourceServiceProvider, Reason: reason})
	sm.indicateClosed(&AbortError{Source: pdu.AbortSourceServiceProvider, Reason: reason, Local: true, Err: err})
	sm.startTimer(sm.associationTimeout())
	return sta13
}

func transportError(err error) error {
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("transport connection closed: %w", err)
}

type upcallEventType int

const (
	upcallEventHandshakeCompleted = upcallEventType(100)
	upcallEventData               = upcallEventType(101)
	// Note: connection shutdown and any error will result in channel
	// closure, so they don't have event types.
)

func (e upcallEventType) String() string {
	var description string
	switch e {
	case upcallEventHandshakeCompleted:
		description = "Handshake completed"
	case upcallEventData:
		description = "P_DATA_TF PDU received"
	default:
		description = "Unknown"
	}
	return fmt.Sprintf("upcall%02d(%s)", int(e), description)
}

type upcallEvent struct {
	eventType upcallEventType

	// The context ID -> <abstract syntax uid, transfer syntax uid> mappings.
	// Sent for upcallEventHandshakeCompleted and upcallEventData.
	cm *contextManager

	// The context of the request. It can be mapped back to <abstract
	// syntax, transfer syntax> by consulting the context manager. Set only
	// in upcallEventData event.
	contextID byte

	command dimse.Message
	data    []byte
}

type stateEventDIMSEPayload struct {
	// Command to send, for logging.
	command dimse.Message

	// The encoded command, followed by the data set if command.HasData(),
	// already split to fit the peer's maximum PDU size.
	pdus []*pdu.PDataTf

	// Receives the outcome of the write. Buffered.
	result chan error
}

func (p *stateEventDIMSEPayload) reply(err error) {
	if p.result != nil {
		p.result <- err
		p.result = nil
	}
}

type stateEvent struct {
	event eventType
	pdu   pdu.PDU
	err   error
	conn  net.Conn

	dimsePayload *stateEventDIMSEPayload // set iff event==evt09.
}

// replyIfPending fails a P-DATA request that arrives in a state that cannot
// send it.
func (e *stateEvent) replyIfPending(err error) {
	if e.dimsePayload != nil {
		e.dimsePayload.reply(err)
	}
}

func (e *stateEvent) String() string {
	return fmt.Sprintf("type:%s err:%v pdu:%v", e.event.String(), e.err, e.pdu)
}

type stateTransitionKey struct {
	current stateType
	event   eventType
}

var stateTransitions = map[stateTransitionKey]*stateAction{
	{sta01, evt01}: actionAe1,
	{sta01, evt05}: actionAe5,
	{sta02, evt03}: actionAa1,
	{sta02, evt04}: actionAa1,
	{sta02, evt06}: actionAe6,
	{sta02, evt10}: actionAa1,
	{sta02, evt12}: actionAa1,
	{sta02, evt13}: actionAa1,
	{sta02, evt15}: actionAa2,
	{sta02, evt16}: actionAa2,
	{sta02, evt17}: actionAa5,
	{sta02, evt18}: actionAa2,
	{sta02, evt19}: actionAa1,
	{sta03, evt03}: actionAa8,
	{sta03, evt04}: actionAa8,
	{sta03, evt06}: actionAa8,
	{sta03, evt07}: actionAe7,
	{sta03, evt08}: actionAe8,
	{sta03, evt10}: actionAa8,
	{sta03, evt12}: actionAa8,
	{sta03, evt13}: actionAa8,
	{sta03, evt15}: actionAa1,
	{sta03, evt16}: actionAa3,
	{sta03, evt17}: actionAa4,
	{sta03, evt19}: actionAa8,
	{sta04, evt02}: actionAe2,
	{sta04, evt15}: actionAa2,
	{sta04, evt17}: actionAa4,
	{sta05, evt03}: actionAe3,
	{sta05, evt04}: actionAe4,
	{sta05, evt06}: actionAa8,
	{sta05, evt10}: actionAa8,
	{sta05, evt12}: actionAa8,
	{sta05, evt13}: actionAa8,
	{sta05, evt15}: actionAa1,
	{sta05, evt16}: actionAa3,
	{sta05, evt17}: actionAa4,
	{sta05, evt18}: actionAa8,
	{sta05, evt19}: actionAa8,
	{sta06, evt03}: actionAa8,
	{sta06, evt04}: actionAa8,
	{sta06, evt06}: actionAa8,
	{sta06, evt09}: actionDt1,
	{sta06, evt10}: actionDt2,
	{sta06, evt11}: actionAr1,
	{sta06, evt12}: actionAr2,
	{sta06, evt13}: actionAa8,
	{sta06, evt15}: actionAa1,
	{sta06, evt16}: actionAa3,
	{sta06, evt17}: actionAa4,
	{sta06, evt19}: actionAa8,
	{sta07, evt03}: actionAa8,
	{sta07, evt04}: actionAa8,
	{sta07, evt06}: actionAa8,
	{sta07, evt09}: actionAr11,
	{sta07, evt10}: actionAr6,
	{sta07, evt12}: actionAr8,
	{sta07, evt13}: actionAr3,
	{sta07, evt15}: actionAa1,
	{sta07, evt16}: actionAa3,
	{sta07, evt17}: actionAa4,
	{sta07, evt18}: actionReleaseTimeout,
	{sta07, evt19}: actionAa8,
	{sta08, evt03}: actionAa8,
	{sta08, evt04}: actionAa8,
	{sta08, evt06}: actionAa8,
	{sta08, evt09}: actionAr7,
	{sta08, evt10}: actionAa8,
	{sta08, evt12}: actionAa8,
	{sta08, evt13}: actionAa8,
	{sta08, evt14}: actionAr4,
	{sta08, evt15}: actionAa1,
	{sta08, evt16}: actionAa3,
	{sta08, evt17}: actionAa4,
	{sta08, evt19}: actionAa8,
	{sta09, evt03}: actionAa8,
	{sta09, evt04}: actionAa8,
	{sta09, evt06}: actionAa8,
	{sta09, evt09}: actionAr11,
	{sta09, evt10}: actionAa8,
	{sta09, evt12}: actionAa8,
	{sta09, evt13}: actionAa8,
	{sta09, evt14}: actionAr9,
	{sta09, evt15}: actionAa1,
	{sta09, evt16}: actionAa3,
	{sta09, evt17}: actionAa4,
	{sta09, evt19}: actionAa8,
	{sta10, evt03}: actionAa8,
	{sta10, evt04}: actionAa8,
	{sta10, evt06}: actionAa8,
	{sta10, evt09}: actionAr11,
	{sta10, evt10}: actionAa8,
	{sta10, evt12}: actionAa8,
	{sta10, evt13}: actionAr10,
	{sta10, evt15}: actionAa1,
	{sta10, evt16}: actionAa3,
	{sta10, evt17}: actionAa4,
	{sta10, evt19}: actionAa8,
	{sta11, evt03}: actionAa8,
	{sta11, evt04}: actionAa8,
	{sta11, evt06}: actionAa8,
	{sta11, evt09}: actionAr11,
	{sta11, evt10}: actionAa8,
	{sta11, evt12}: actionAa8,
	{sta11, evt13}: actionAr3,
	{sta11, evt15}: actionAa1,
	{sta11, evt16}: actionAa3,
	{sta11, evt17}: actionAa4,
	{sta11, evt19}: actionAa8,
	{sta12, evt03}: actionAa8,
	{sta12, evt04}: actionAa8,
	{sta12, evt06}: actionAa8,
	{sta12, evt09}: actionAr11,
	{sta12, evt10}: actionAa8,
	{sta12, evt12}: actionAa8,
	{sta12, evt13}: actionAa8,
	{sta12, evt14}: actionAr4,
	{sta12, evt15}: actionAa1,
	{sta12, evt16}: actionAa3,
	{sta12, evt17}: actionAa4,
	{sta12, evt19}: actionAa8,
	{sta13, evt03}: actionAa6,
	{sta13, evt04}: actionAa6,
	{sta13, evt06}: actionAa7,
	{sta13, evt07}: actionAa7,
	{sta13, evt08}: actionAa7,
	{sta13, evt09}: actionAa7,
	{sta13, evt10}: actionAa6,
	{sta13, evt11}: actionAa6,
	{sta13, evt12}: actionAa6,
	{sta13, evt13}: actionAa6,
	{sta13, evt14}: actionAa6,
	{sta13, evt15}: actionAa2,
	{sta13, evt16}: actionAa2,
	{sta13, evt17}: actionAr5,
	{sta13, evt18}: actionAa2,
	{sta13, evt19}: actionAa7,
}

func findAction(currentState stateType, event *stateEvent) *stateAction {
	key := stateTransitionKey{currentState, event.event}
	if action, ok := stateTransitions[key]; ok {
		return action
	}
	return nil
}

// Per-TCP-connection state.
type stateMachine struct {
	label  string // For logging only
	isUser bool   // true if service user, false if provider

	// userParams is set only for a client-side statemachine, providerParams
	// only for a server-side one.
	userParams     ServiceUserParams
	providerParams ServiceProviderParams

	// Manages mappings between one-byte contextID to the
	// <abstractsyntaxUID, transfersyntaxuid> pair.  Filled during A_ACCEPT
	// handshake.
	contextManager *contextManager

	// For receiving PDU and network status events.
	// Owned by networkReaderThread.
	netCh chan stateEvent

	// For events the statemachine raises on itself: write failures and
	// the local responses to A-ASSOCIATE and A-RELEASE indications.
	errorCh chan stateEvent

	// For receiving commands from the upper layer
	// Owned by the upper layer.
	downcallCh chan stateEvent

	// Closed by Association.Abort. Turns into evt15.
	abortCh  chan struct{}
	abortReq <-chan struct{}

	// For sending indications to the the upper layer. Owned by the
	// statemachine. Closed, together with closedCh, once the association
	// can no longer be used; closeErr then holds the cause.
	upcallCh chan upcallEvent
	closedCh chan struct{}
	closeErr error

	// Closed when the statemachine exits.
	done chan struct{}

	// For Timer expiration event
	timerCh chan stateEvent
	timer   *time.Timer

	// The socket to the remote peer. connMu guards writes to conn and
	// reads from outside the statemachine goroutine.
	connMu       sync.Mutex
	conn         net.Conn
	currentState stateType

	// For assembling DIMSE command from multiple P_DATA_TF fragments.
	commandAssembler dimse.CommandAssembler
}

var labelCounter atomic.Int64

func newLabel(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, labelCounter.Add(1))
}

func newStateMachine(label string, isUser bool, maxPDUSize uint32) *stateMachine {
	abortCh := make(chan struct{})
	return &stateMachine{
		label:          label,
		isUser:         isUser,
		contextManager: newContextManager(label, maxPDUSize),
		netCh:          make(chan stateEvent, 128),
		errorCh:        make(chan stateEvent, 128),
		downcallCh:     make(chan stateEvent),
		abortCh:        abortCh,
		abortReq:       abortCh,
		upcallCh:       make(chan upcallEvent, 128),
		closedCh:       make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// indicateClosed tells the upper layer that the association is over. The
// first cause wins; a nil cause means an orderly release.
func (sm *stateMachine) indicateClosed(cause error) {
	select {
	case <-sm.closedCh:
		return
	default:
	}
	if cause != nil {
		dicomlog.Vprintf(0, "dicom.stateMachine(%s): association closed: %v", sm.label, cause)
	} else {
		dicomlog.Vprintf(1, "dicom.stateMachine(%s): association released", sm.label)
	}
	sm.closeErr = cause
	close(sm.closedCh)
	close(sm.upcallCh)
}

func (sm *stateMachine) closeConnection(cause error) {
	sm.indicateClosed(cause)
	dicomlog.Vprintf(1, "dicom.stateMachine(%s): Closing connection %v", sm.label, sm.conn)
	if sm.conn != nil {
		sm.conn.Close()
	}
}

func (sm *stateMachine) setConn(conn net.Conn) {
	sm.connMu.Lock()
	sm.conn = conn
	sm.connMu.Unlock()
}

// connection may be called from any goroutine.
func (sm *stateMachine) connection() net.Conn {
	sm.connMu.Lock()
	defer sm.connMu.Unlock()
	return sm.conn
}

// raise queues an event for the statemachine itself.
func (sm *stateMachine) raise(event stateEvent) {
	sm.errorCh <- event
}

// sendUpcall blocks until the upper layer takes the event, unless the
// association has ended or an abort is pending.
func (sm *stateMachine) sendUpcall(event upcallEvent) {
	select {
	case <-sm.closedCh:
		return
	default:
	}
	select {
	case sm.upcallCh <- event:
	case <-sm.abortReq:
		dicomlog.Vprintf(1, "dicom.stateMachine(%s): dropping %v, abort pending", sm.label, event.eventType)
	}
}

// sendPDU writes one PDU. A failure closes the connection and queues evt17,
// and is also returned so that a pending Send can report it.
func (sm *stateMachine) sendPDU(v pdu.PDU) error {
	doassert(sm.conn != nil)
	data, err := pdu.EncodePDU(v)
	if err != nil {
		dicomlog.Vprintf(0, "dicom.stateMachine(%s): Failed to encode: %v; closing connection %v", sm.label, err, sm.conn)
		sm.conn.Close()
		sm.raise(stateEvent{event: evt17, err: err})
		return err
	}
	n, err := sm.conn.Write(data)
	if n != len(data) || err != nil {
		if err == nil {
			err = io.ErrShortWrite
		}
		dicomlog.Vprintf(0, "dicom.stateMachine(%s): Failed to write %d bytes. Actual %d bytes : %v; closing connection %v", sm.label, len(data), n, err, sm.conn)
		sm.conn.Close()
		sm.raise(stateEvent{event: evt17, err: err})
		return err
	}
	dicomlog.Vprintf(2, "dicom.stateMachine(%s): sendPDU: %v", sm.label, v.String())
	return nil
}

func (sm *stateMachine) associationTimeout() time.Duration {
	if sm.isUser {
		return sm.userParams.AssociationTimeout
	}
	return sm.providerParams.AssociationTimeout
}

func (sm *stateMachine) releaseTimeout() time.Duration {
	if sm.isUser {
		return sm.userParams.ReleaseTimeout
	}
	return sm.providerParams.ReleaseTimeout
}

// startTimer (re)starts the ARTIM timer. Only the latest timer can fire.
func (sm *stateMachine) startTimer(d time.Duration) {
	sm.stopTimer()
	ch := make(chan stateEvent, 1)
	sm.timerCh = ch
	currentState := sm.currentState
	sm.timer = time.AfterFunc(d, func() {
		ch <- stateEvent{event: evt18, err: fmt.Errorf("%w after %v in %v", ErrTimeout, d, currentState.String())}
	})
}

func (sm *stateMachine) stopTimer() {
	if sm.timer != nil {
		sm.timer.Stop()
		sm.timer = nil
	}
	sm.timerCh = nil
}

// networkReaderThread converts inbound PDUs into events until the
// connection fails.
func (sm *stateMachine) networkReaderThread(conn net.Conn) {
	maxPDUSize := int(sm.contextManager.maxPDUSize)
	dicomlog.Vprintf(2, "dicom.stateMachine(%s): Starting network reader, maxPDU %d", sm.label, maxPDUSize)
	send := func(event stateEvent) bool {
		select {
		case sm.netCh <- event:
			return true
		case <-sm.done:
			return false
		}
	}
	for {
		v, err := pdu.ReadPDU(conn, maxPDUSize)
		if err != nil {
			if errors.Is(err, pdu.ErrMalformedPDU) || errors.Is(err, pdu.ErrPDUTooLarge) {
				dicomlog.Vprintf(0, "dicom.stateMachine(%s): Invalid PDU: %v", sm.label, err)
				send(stateEvent{event: evt19, err: err})
			} else {
				dicomlog.Vprintf(1, "dicom.stateMachine(%s): Failed to read PDU: %v", sm.label, err)
				send(stateEvent{event: evt17, err: err})
			}
			break
		}
		dicomlog.Vprintf(2, "dicom.stateMachine(%s): read PDU: %v", sm.label, v.String())
		var event stateEvent
		switch n := v.(type) {
		case *pdu.AAssociateRQ:
			event = stateEvent{event: evt06, pdu: n}
		case *pdu.AAssociateAC:
			event = stateEvent{event: evt03, pdu: n}
		case *pdu.AAssociateRj:
			event = stateEvent{event: evt04, pdu: n}
		case *pdu.PDataTf:
			event = stateEvent{event: evt10, pdu: n}
		case *pdu.AReleaseRq:
			event = stateEvent{event: evt12, pdu: n}
		case *pdu.AReleaseRp:
			event = stateEvent{event: evt13, pdu: n}
		case *pdu.AAbort:
			event = stateEvent{event: evt16, pdu: n}
		default:
			event = stateEvent{event: evt19, pdu: v, err: fmt.Errorf("unknown PDU type: %v", v)}
		}
		if !send(event) {
			break
		}
	}
	dicomlog.Vprintf(2, "dicom.stateMachine(%s): Exiting network reader", sm.label)
}

func (sm *stateMachine) getNextEvent() stateEvent {
	// Self-raised events go first so that a response primitive is handled
	// before the next PDU.
	select {
	case event := <-sm.errorCh:
		return event
	default:
	}
	select {
	case event := <-sm.netCh:
		return event
	case event := <-sm.errorCh:
		return event
	case event := <-sm.timerCh:
		sm.timerCh = nil
		sm.timer = nil
		return event
	case event := <-sm.downcallCh:
		return event
	case <-sm.abortCh:
		sm.abortCh = nil
		return stateEvent{event: evt15}
	}
}

func (sm *stateMachine) runOneStep() {
	event := sm.getNextEvent()
	dicomlog.Vprintf(2, "dicom.stateMachine(%s): Current state: %v, Event %v", sm.label, sm.currentState.String(), event.String())
	action := findAction(sm.currentState, &event)
	if action == nil {
		dicomlog.Vprintf(0, "dicom.stateMachine(%s): No action found for state %v, event %v", sm.label, sm.currentState.String(), event.String())
		if event.err == nil {
			event.err = fmt.Errorf("unexpected %v in %v", event.event.String(), sm.currentState.String())
		}
		// Abort the association; tell the peer when there is a connection.
		action = actionAa2
		if sm.conn != nil {
			action = actionAa1
		}
	}
	dicomlog.Vprintf(2, "dicom.stateMachine(%s): Running action %v", sm.label, action)
	sm.currentState = action.Callback(sm, event)
	dicomlog.Vprintf(2, "dicom.stateMachine(%s): Next state: %v", sm.label, sm.currentState.String())
}

func (sm *stateMachine) run(first stateEvent) {
	defer close(sm.done)
	defer sm.stopTimer()
	sm.currentState = sta01
	sm.currentState = findAction(sta01, &first).Callback(sm, first)
	for sm.currentState != sta01 {
		sm.runOneStep()
	}
	// Unblock anyone still waiting on the association, e.g. after AE-2
	// failed before a PDU was exchanged.
	sm.closeConnection(nil)
	dicomlog.Vprintf(1, "dicom.stateMachine(%s): statemachine finished", sm.label)
}

// runStateMachineForServiceUser drives a requestor. sm.userParams must be
// set before the goroutine starts; other goroutines read it.
func runStateMachineForServiceUser(sm *stateMachine) {
	doassert(sm.userParams.CallingAETitle != "")
	doassert(len(sm.userParams.Contexts) > 0)
	sm.run(stateEvent{event: evt01})
}

// runStateMachineForServiceProvider drives an acceptor on conn. Like the
// user side, sm.providerParams is set by the caller.
func runStateMachineForServiceProvider(sm *stateMachine, conn net.Conn) {
	sm.run(stateEvent{event: evt05, conn: conn})
}
