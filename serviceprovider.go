package netdicom

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/giesekow/go-dcmnet/dataset"
	"github.com/giesekow/go-dcmnet/dimse"
	"github.com/grailbio/go-dicom/dicomlog"
	"github.com/grailbio/go-dicom/dicomuid"
)

// ConnectionState describes the association a request arrived on.
type ConnectionState struct {
	CallingAETitle string
	CalledAETitle  string
	RemoteAddr     string
}

// CEchoCallback implements C-ECHO.
type CEchoCallback func(ctx context.Context, conn ConnectionState) dimse.Status

// CStoreCallback stores one instance. ds is already decoded in
// transferSyntaxUID.
type CStoreCallback func(
	ctx context.Context,
	conn ConnectionState,
	transferSyntaxUID string,
	sopClassUID string,
	sopInstanceUID string,
	ds *dataset.DataSet) dimse.Status

// CFindResult is one match of a C-FIND. A non-nil Err ends the query with a
// failure status.
type CFindResult struct {
	DataSet *dataset.DataSet
	Err     error
}

// CFindCallback runs a query. It must close the returned channel when done,
// and should stop early once ctx is cancelled by a C-CANCEL.
type CFindCallback func(
	ctx context.Context,
	conn ConnectionState,
	transferSyntaxUID string,
	sopClassUID string,
	query *dataset.DataSet) <-chan CFindResult

// CMoveCallback performs the C-STORE sub-operations of a C-MOVE towards
// destAE and reports their outcome.
type CMoveCallback func(
	ctx context.Context,
	conn ConnectionState,
	transferSyntaxUID string,
	sopClassUID string,
	destAE string,
	query *dataset.DataSet) (dimse.SubOperations, dimse.Status)

var errCancelled = errors.New("cancelled by C-CANCEL")

// ServiceProvider accepts associations and dispatches their DIMSE requests
// to the callbacks in ServiceProviderParams.
type ServiceProvider struct {
	params ServiceProviderParams
}

// NewServiceProvider creates a provider. It does not listen; call Serve or
// Accept.
func NewServiceProvider(params ServiceProviderParams) *ServiceProvider {
	return &ServiceProvider{params: params.withDefaults()}
}

// Accept negotiates an association on conn, which the caller has already
// accepted. The connection is owned by the association from then on.
func (sp *ServiceProvider) Accept(ctx context.Context, conn net.Conn) (*Association, error) {
	label := newLabel("provider")
	dicomlog.Vprintf(1, "dicom.serviceProvider(%s): connection from %v", label, conn.RemoteAddr())
	sm := newStateMachine(label, false, sp.params.MaxPDULength)
	sm.providerParams = sp.params
	go runStateMachineForServiceProvider(sm, conn)
	return awaitHandshake(ctx, sm)
}

// Serve accepts connections from listener until ctx is done, running each
// association in its own goroutine. It closes the listener and returns once
// every association has ended.
func (sp *ServiceProvider) Serve(ctx context.Context, listener net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		listener.Close()
	}()
	dicomlog.Vprintf(1, "dicom.serviceProvider: listening on %v", listener.Addr())

	var (
		wg       sync.WaitGroup
		serveErr error
	)
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				dicomlog.Vprintf(0, "dicom.serviceProvider: accept: %v", err)
				continue
			}
			serveErr = err
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := sp.Accept(ctx, conn)
			if err != nil {
				dicomlog.Vprintf(0, "dicom.serviceProvider: association from %v failed: %v", conn.RemoteAddr(), err)
				return
			}
			if err := sp.Run(ctx, a); err != nil {
				dicomlog.Vprintf(0, "dicom.serviceProvider(%s): %v", a.sm.label, err)
			}
		}()
	}
	wg.Wait()
	if serveErr != nil {
		return serveErr
	}
	return ctx.Err()
}

// Run answers requests on a until the association ends. It returns nil
// after an orderly release. If ctx is done first, the association is
// aborted.
func (sp *ServiceProvider) Run(ctx context.Context, a *Association) error {
	d := &dispatcher{
		sp:      sp,
		a:       a,
		cancels: map[dimse.MessageID]context.CancelCauseFunc{},
		conn: ConnectionState{
			CallingAETitle: a.CallingAETitle(),
			CalledAETitle:  a.CalledAETitle(),
		},
	}
	if conn := a.sm.connection(); conn != nil {
		d.conn.RemoteAddr = conn.RemoteAddr().String()
	}
	defer d.wait()
	for {
		p, err := a.Receive(ctx)
		if p == nil {
			if ctx.Err() != nil {
				a.Abort()
				return ctx.Err()
			}
			if errors.Is(err, ErrAssociationClosed) && a.Err() == nil {
				return nil
			}
			return err
		}
		d.dispatch(ctx, p, err)
	}
}

// dispatcher tracks the requests of one association.
type dispatcher struct {
	sp   *ServiceProvider
	a    *Association
	conn ConnectionState

	wg      sync.WaitGroup
	mu      sync.Mutex
	cancels map[dimse.MessageID]context.CancelCauseFunc
}

func (d *dispatcher) wait() {
	d.mu.Lock()
	for _, cancel := range d.cancels {
		cancel(ErrAssociationClosed)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *dispatcher) respond(ctx context.Context, p *Payload, rsp dimse.Message, ds *dataset.DataSet) error {
	err := d.a.SendOnContext(ctx, p.ContextID, rsp, ds)
	if err != nil {
		dicomlog.Vprintf(0, "dicom.serviceProvider(%s): failed to send %v: %v", d.a.sm.label, rsp, err)
	}
	return err
}

// dispatch handles one request. decodeErr is set when the data set of p
// could not be parsed.
func (d *dispatcher) dispatch(ctx context.Context, p *Payload, decodeErr error) {
	params := &d.sp.params
	dicomlog.Vprintf(1, "dicom.serviceProvider(%s): received %v on %s", d.a.sm.label, p.Command, dicomuid.UIDString(p.AbstractSyntaxUID))
	switch c := p.Command.(type) {
	case *dimse.CEchoRq:
		status := dimse.Success
		if params.CEcho != nil {
			status = params.CEcho(ctx, d.conn)
		}
		d.respond(ctx, p, &dimse.CEchoRsp{
			AffectedSOPClassUID:       c.AffectedSOPClassUID,
			MessageIDBeingRespondedTo: c.MessageID,
			CommandDataSetType:        dimse.CommandDataSetTypeNull,
			Status:                    status,
		}, nil)
	case *dimse.CStoreRq:
		var status dimse.Status
		switch {
		case decodeErr != nil:
			status = dimse.Status{Status: dimse.CStoreCannotUnderstand, ErrorComment: decodeErr.Error()}
		case params.CStore == nil:
			status = dimse.Status{Status: dimse.StatusUnrecognizedOperation, ErrorComment: "C-STORE not supported"}
		default:
			status = params.CStore(ctx, d.conn, p.TransferSyntaxUID, c.AffectedSOPClassUID, c.AffectedSOPInstanceUID, p.DataSet)
		}
		d.respond(ctx, p, &dimse.CStoreRsp{
			AffectedSOPClassUID:       c.AffectedSOPClassUID,
			MessageIDBeingRespondedTo: c.MessageID,
			CommandDataSetType:        dimse.CommandDataSetTypeNull,
			AffectedSOPInstanceUID:    c.AffectedSOPInstanceUID,
			Status:                    status,
		}, nil)
	case *dimse.CFindRq:
		rsp := &dimse.CFindRsp{
			AffectedSOPClassUID:       c.AffectedSOPClassUID,
			MessageIDBeingRespondedTo: c.MessageID,
			CommandDataSetType:        dimse.CommandDataSetTypeNull,
		}
		switch {
		case decodeErr != nil:
			rsp.Status = dimse.Status{Status: dimse.CFindUnableToProcess, ErrorComment: decodeErr.Error()}
		case params.CFind == nil:
			rsp.Status = dimse.Status{Status: dimse.StatusUnrecognizedOperation, ErrorComment: "C-FIND not supported"}
		default:
			d.start(ctx, c.MessageID, func(opCtx context.Context) { d.runFind(opCtx, ctx, p, c) })
			return
		}
		d.respond(ctx, p, rsp, nil)
	case *dimse.CMoveRq:
		rsp := &dimse.CMoveRsp{
			AffectedSOPClassUID:       c.AffectedSOPClassUID,
			MessageIDBeingRespondedTo: c.MessageID,
			CommandDataSetType:        dimse.CommandDataSetTypeNull,
		}
		switch {
		case decodeErr != nil:
			rsp.Status = dimse.Status{Status: dimse.CMoveDataSetDoesNotMatchSOPClass, ErrorComment: decodeErr.Error()}
		case params.CMove == nil:
			rsp.Status = dimse.Status{Status: dimse.StatusUnrecognizedOperation, ErrorComment: "C-MOVE not supported"}
		default:
			d.start(ctx, c.MessageID, func(opCtx context.Context) { d.runMove(opCtx, ctx, p, c) })
			return
		}
		d.respond(ctx, p, rsp, nil)
	case *dimse.CGetRq:
		d.respond(ctx, p, &dimse.CGetRsp{
			AffectedSOPClassUID:       c.AffectedSOPClassUID,
			MessageIDBeingRespondedTo: c.MessageID,
			CommandDataSetType:        dimse.CommandDataSetTypeNull,
			Status:                    dimse.Status{Status: dimse.StatusUnrecognizedOperation, ErrorComment: "C-GET not supported"},
		}, nil)
	case *dimse.CCancelRq:
		d.mu.Lock()
		cancel, ok := d.cancels[c.MessageIDBeingRespondedTo]
		d.mu.Unlock()
		if !ok {
			dicomlog.Vprintf(1, "dicom.serviceProvider(%s): C-CANCEL for unknown request %d", d.a.sm.label, c.MessageIDBeingRespondedTo)
			return
		}
		cancel(errCancelled)
	default:
		dicomlog.Vprintf(0, "dicom.serviceProvider(%s): ignoring unexpected %v", d.a.sm.label, p.Command)
	}
}

// start runs a cancellable operation in the background.
func (d *dispatcher) start(ctx context.Context, id dimse.MessageID, op func(opCtx context.Context)) {
	opCtx, cancel := context.WithCancelCause(ctx)
	d.mu.Lock()
	if _, dup := d.cancels[id]; dup {
		dicomlog.Vprintf(0, "dicom.serviceProvider(%s): duplicate message ID %d", d.a.sm.label, id)
	}
	d.cancels[id] = cancel
	d.mu.Unlock()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			d.mu.Lock()
			delete(d.cancels, id)
			d.mu.Unlock()
			cancel(nil)
		}()
		op(opCtx)
	}()
}

// finalStatus turns status into Cancel if the operation was cancelled.
func finalStatus(opCtx context.Context, status dimse.Status) dimse.Status {
	if errors.Is(context.Cause(opCtx), errCancelled) {
		return dimse.Status{Status: dimse.StatusCancel}
	}
	return status
}

func (d *dispatcher) runFind(opCtx, ctx context.Context, p *Payload, c *dimse.CFindRq) {
	results := d.sp.params.CFind(opCtx, d.conn, p.TransferSyntaxUID, c.AffectedSOPClassUID, p.DataSet)
	// The callback owns the channel; keep draining it so that it never
	// blocks, even after we stop answering.
	defer func() {
		go func() {
			for range results {
			}
		}()
	}()
	status := dimse.Success
	for r := range results {
		if opCtx.Err() != nil {
			break
		}
		if r.Err != nil {
			dicomlog.Vprintf(0, "dicom.serviceProvider(%s): C-FIND %d: %v", d.a.sm.label, c.MessageID, r.Err)
			status = dimse.Status{Status: dimse.CFindUnableToProcess, ErrorComment: r.Err.Error()}
			break
		}
		if r.DataSet == nil {
			continue
		}
		if err := d.respond(ctx, p, &dimse.CFindRsp{
			AffectedSOPClassUID:       c.AffectedSOPClassUID,
			MessageIDBeingRespondedTo: c.MessageID,
			CommandDataSetType:        dimse.CommandDataSetTypeNonNull,
			Status:                    dimse.Status{Status: dimse.StatusPending},
		}, r.DataSet); err != nil {
			return
		}
	}
	if errors.Is(context.Cause(opCtx), ErrAssociationClosed) {
		return
	}
	d.respond(ctx, p, &dimse.CFindRsp{
		AffectedSOPClassUID:       c.AffectedSOPClassUID,
		MessageIDBeingRespondedTo: c.MessageID,
		CommandDataSetType:        dimse.CommandDataSetTypeNull,
		Status:                    finalStatus(opCtx, status),
	}, nil)
}

func (d *dispatcher) runMove(opCtx, ctx context.Context, p *Payload, c *dimse.CMoveRq) {
	subOps, status := d.sp.params.CMove(opCtx, d.conn, p.TransferSyntaxUID, c.AffectedSOPClassUID, c.MoveDestination, p.DataSet)
	if errors.Is(context.Cause(opCtx), ErrAssociationClosed) {
		return
	}
	d.respond(ctx, p, &dimse.CMoveRsp{
		AffectedSOPClassUID:       c.AffectedSOPClassUID,
		MessageIDBeingRespondedTo: c.MessageID,
		CommandDataSetType:        dimse.CommandDataSetTypeNull,
		SubOperations:             subOps,
		Status:                    finalStatus(opCtx, status),
	}, nil)
}

func (sp *ServiceProvider) String() string {
	return fmt.Sprintf("serviceProvider(%s)", sp.params.AETitle)
}
