package netdicom

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/giesekow/go-dcmnet/dataset"
	"github.com/giesekow/go-dcmnet/dimse"
	"github.com/giesekow/go-dcmnet/tag"
	"github.com/grailbio/go-dicom/dicomlog"
	"github.com/grailbio/go-dicom/dicomuid"
)

// verificationSOPClassUID is the abstract syntax of C-ECHO.
const verificationSOPClassUID = "1.2.840.10008.1.1"

var errUnexpectedResponse = errors.New("unexpected DIMSE response")

// Connect dials addr and negotiates an association. It returns once the
// peer accepts (A-ASSOCIATE-AC), rejects (*RejectError), aborts, or
// params.ConnectTimeout expires.
func Connect(ctx context.Context, addr string, params ServiceUserParams) (*Association, error) {
	params = params.withDefaults()
	if params.CalledAETitle == "" || params.CallingAETitle == "" {
		return nil, errors.New("Connect: CalledAETitle and CallingAETitle must be set")
	}
	if len(params.Contexts) == 0 {
		return nil, errors.New("Connect: no presentation context to propose")
	}
	ctx, cancel := context.WithTimeout(ctx, params.ConnectTimeout)
	defer cancel()

	label := newLabel("user")
	sm := newStateMachine(label, true, params.MaxPDULength)
	sm.userParams = params
	go runStateMachineForServiceUser(sm)

	dicomlog.Vprintf(1, "dicom.Connect(%s): dialing %s", label, addr)
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	event := stateEvent{event: evt02, conn: conn}
	if err != nil {
		event = stateEvent{event: evt17, err: err}
	}
	sm.downcallCh <- event

	a, err := awaitHandshake(ctx, sm)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return nil, fmt.Errorf("Connect %s: %w", addr, err)
	}
	return a, nil
}

// awaitResponse reads payloads until handle reports the final response to
// request id. Messages about other requests are logged and dropped.
func (a *Association) awaitResponse(ctx context.Context, id dimse.MessageID, handle func(p *Payload) (bool, error)) error {
	defer a.inflight.Delete(id)
	for {
		p, err := a.Receive(ctx)
		if p == nil {
			return err
		}
		if p.Command.GetStatus() == nil || p.Command.GetMessageID() != id {
			dicomlog.Vprintf(0, "dicom.Association(%s): dropping %v while waiting for a response to %d", a.sm.label, p.Command, id)
			continue
		}
		if err != nil {
			return err
		}
		done, err := handle(p)
		if done || err != nil {
			return err
		}
	}
}

// CEcho issues a C-ECHO and waits for its response.
func (a *Association) CEcho(ctx context.Context) error {
	id := a.NextMessageID()
	if err := a.Send(ctx, &dimse.CEchoRq{
		AffectedSOPClassUID: verificationSOPClassUID,
		MessageID:           id,
		CommandDataSetType:  dimse.CommandDataSetTypeNull,
	}, nil); err != nil {
		return err
	}
	return a.awaitResponse(ctx, id, func(p *Payload) (bool, error) {
		rsp, ok := p.Command.(*dimse.CEchoRsp)
		if !ok {
			return true, fmt.Errorf("CEcho: %w: %v", errUnexpectedResponse, p.Command)
		}
		if !rsp.Status.IsSuccess() {
			return true, &StatusError{Op: "C-ECHO", Status: rsp.Status}
		}
		return true, nil
	})
}

// CStore sends ds to the peer. The SOP class and instance are taken from
// SOPClassUID and SOPInstanceUID in ds. A warning status is not an error.
func (a *Association) CStore(ctx context.Context, ds *dataset.DataSet) error {
	sopClassUID, err := ds.GetString(tag.SOPClassUID)
	if err != nil {
		return fmt.Errorf("CStore: %w", err)
	}
	sopInstanceUID, err := ds.GetString(tag.SOPInstanceUID)
	if err != nil {
		return fmt.Errorf("CStore: %w", err)
	}
	id := a.NextMessageID()
	dicomlog.Vprintf(1, "dicom.Association(%s): C-STORE %s %s", a.sm.label, dicomuid.UIDString(sopClassUID), sopInstanceUID)
	if err := a.Send(ctx, &dimse.CStoreRq{
		AffectedSOPClassUID:    sopClassUID,
		MessageID:              id,
		Priority:               dimse.PriorityMedium,
		CommandDataSetType:     dimse.CommandDataSetTypeNonNull,
		AffectedSOPInstanceUID: sopInstanceUID,
	}, ds); err != nil {
		return err
	}
	return a.awaitResponse(ctx, id, func(p *Payload) (bool, error) {
		rsp, ok := p.Command.(*dimse.CStoreRsp)
		if !ok {
			return true, fmt.Errorf("CStore: %w: %v", errUnexpectedResponse, p.Command)
		}
		if rsp.Status.IsWarning() {
			dicomlog.Vprintf(1, "dicom.Association(%s): C-STORE %s: %v", a.sm.label, sopInstanceUID, rsp.Status)
			return true, nil
		}
		if !rsp.Status.IsSuccess() {
			return true, &StatusError{Op: "C-STORE", Status: rsp.Status}
		}
		return true, nil
	})
}

// CFind issues a C-FIND and collects the data sets of the pending
// responses. On a failure status the matches received so far are returned
// with a *StatusError.
func (a *Association) CFind(ctx context.Context, sopClassUID string, query *dataset.DataSet) ([]*dataset.DataSet, error) {
	id := a.NextMessageID()
	if err := a.Send(ctx, &dimse.CFindRq{
		AffectedSOPClassUID: sopClassUID,
		MessageID:           id,
		Priority:            dimse.PriorityMedium,
		CommandDataSetType:  dimse.CommandDataSetTypeNonNull,
	}, query); err != nil {
		return nil, err
	}
	var matches []*dataset.DataSet
	err := a.awaitResponse(ctx, id, func(p *Payload) (bool, error) {
		rsp, ok := p.Command.(*dimse.CFindRsp)
		if !ok {
			return true, fmt.Errorf("CFind: %w: %v", errUnexpectedResponse, p.Command)
		}
		if rsp.Status.IsPending() {
			if p.DataSet != nil {
				matches = append(matches, p.DataSet)
			}
			return false, nil
		}
		if !rsp.Status.IsSuccess() && rsp.Status.Status != dimse.StatusCancel {
			return true, &StatusError{Op: "C-FIND", Status: rsp.Status}
		}
		return true, nil
	})
	return matches, err
}

// CMove asks the peer to send the instances matching query to destAE, and
// returns the final response.
func (a *Association) CMove(ctx context.Context, sopClassUID, destAE string, query *dataset.DataSet) (*dimse.CMoveRsp, error) {
	id := a.NextMessageID()
	if err := a.Send(ctx, &dimse.CMoveRq{
		AffectedSOPClassUID: sopClassUID,
		MessageID:           id,
		Priority:            dimse.PriorityMedium,
		MoveDestination:     destAE,
		CommandDataSetType:  dimse.CommandDataSetTypeNonNull,
	}, query); err != nil {
		return nil, err
	}
	var final *dimse.CMoveRsp
	err := a.awaitResponse(ctx, id, func(p *Payload) (bool, error) {
		rsp, ok := p.Command.(*dimse.CMoveRsp)
		if !ok {
			return true, fmt.Errorf("CMove: %w: %v", errUnexpectedResponse, p.Command)
		}
		if rsp.Status.IsPending() {
			dicomlog.Vprintf(1, "dicom.Association(%s): C-MOVE progress: %v", a.sm.label, rsp.SubOperations)
			return false, nil
		}
		final = rsp
		if !rsp.Status.IsSuccess() && !rsp.Status.IsWarning() && rsp.Status.Status != dimse.StatusCancel {
			return true, &StatusError{Op: "C-MOVE", Status: rsp.Status}
		}
		return true, nil
	})
	return final, err
}

// CCancel asks the peer to stop the C-FIND, C-GET or C-MOVE with message ID
// id. The final response still arrives through the call that sent the
// request.
func (a *Association) CCancel(ctx context.Context, id dimse.MessageID) error {
	contextID, err := a.contextOf(id)
	if err != nil {
		return fmt.Errorf("CCancel: %w", err)
	}
	return a.SendOnContext(ctx, contextID, &dimse.CCancelRq{
		MessageIDBeingRespondedTo: id,
		CommandDataSetType:        dimse.CommandDataSetTypeNull,
	}, nil)
}
