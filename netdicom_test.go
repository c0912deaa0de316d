package netdicom_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	netdicom "github.com/giesekow/go-dcmnet"
	"github.com/giesekow/go-dcmnet/dataset"
	"github.com/giesekow/go-dcmnet/dimse"
	"github.com/giesekow/go-dcmnet/pdu"
	"github.com/giesekow/go-dcmnet/pdu/pdu_item"
	"github.com/giesekow/go-dcmnet/tag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	verificationUID = "1.2.840.10008.1.1"
	ctImageUID      = "1.2.840.10008.5.1.4.1.1.2"
	studyFindUID    = "1.2.840.10008.5.1.4.1.2.2.1"
	studyMoveUID    = "1.2.840.10008.5.1.4.1.2.2.2"
	patientGetUID   = "1.2.840.10008.5.1.4.1.2.1.3"
)

// startProvider serves params on a loopback port until the test ends.
func startProvider(t *testing.T, params netdicom.ServiceProviderParams) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	sp := netdicom.NewServiceProvider(params)
	done := make(chan error, 1)
	go func() { done <- sp.Serve(ctx, listener) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return listener.Addr().String()
}

func connect(t *testing.T, addr string, contexts ...netdicom.ProposedContext) *netdicom.Association {
	t.Helper()
	a, err := netdicom.Connect(context.Background(), addr, netdicom.ServiceUserParams{
		CalledAETitle:  "SCP",
		CallingAETitle: "SCU",
		Contexts:       contexts,
	})
	require.NoError(t, err)
	return a
}

func ctDataSet(t *testing.T, pixels int) *dataset.DataSet {
	t.Helper()
	data := make([]byte, pixels)
	for i := range data {
		data[i] = byte(i * 7)
	}
	return dataset.New(
		dataset.MustNewElement(tag.SOPClassUID, dataset.UI, ctImageUID),
		dataset.MustNewElement(tag.SOPInstanceUID, dataset.UI, "1.2.826.0.1.3680043.2.1125.1"),
		dataset.MustNewElement(tag.PatientName, dataset.PN, "Doe^John"),
		dataset.MustNewElement(tag.PatientID, dataset.LO, "P123"),
		dataset.MustNewElement(tag.PixelData, dataset.OB, data),
	)
}

func TestEcho(t *testing.T) {
	var calls atomic.Int32
	addr := startProvider(t, netdicom.ServiceProviderParams{
		AETitle: "SCP",
		CEcho: func(ctx context.Context, conn netdicom.ConnectionState) dimse.Status {
			calls.Add(1)
			assert.Equal(t, "SCU", conn.CallingAETitle)
			assert.Equal(t, "SCP", conn.CalledAETitle)
			return dimse.Success
		},
	})
	a := connect(t, addr, netdicom.ProposedContext{AbstractSyntaxUID: verificationUID})
	require.NoError(t, a.CEcho(context.Background()))
	require.NoError(t, a.CEcho(context.Background()))
	require.NoError(t, a.Release(context.Background()))
	assert.NoError(t, a.Err())
	assert.Equal(t, int32(2), calls.Load())

	err := a.CEcho(context.Background())
	assert.ErrorIs(t, err, netdicom.ErrAssociationClosed)
}

func TestNegotiationPartialAccept(t *testing.T) {
	addr := startProvider(t, netdicom.ServiceProviderParams{
		SupportedContexts: map[string][]string{
			verificationUID: {dataset.ImplicitVRLittleEndian.UID},
		},
	})
	a := connect(t, addr,
		netdicom.ProposedContext{AbstractSyntaxUID: verificationUID},
		netdicom.ProposedContext{AbstractSyntaxUID: ctImageUID})
	defer a.Release(context.Background())

	pcs := a.PresentationContexts()
	require.Len(t, pcs, 2)
	assert.Equal(t, byte(1), pcs[0].ID)
	assert.Equal(t, pdu_item.PresentationContextAccepted, pcs[0].Result)
	assert.Equal(t, dataset.ImplicitVRLittleEndian.UID, pcs[0].AcceptedTransferSyntaxUID)
	assert.Equal(t, byte(3), pcs[1].ID)
	assert.Equal(t, pdu_item.PresentationContextProviderRejectionAbstractSyntaxNotSupported, pcs[1].Result)

	require.NoError(t, a.CEcho(context.Background()))
	err := a.CStore(context.Background(), ctDataSet(t, 16))
	assert.ErrorIs(t, err, netdicom.ErrNoPresentationContext)
}

func TestStoreLargerThanPDU(t *testing.T) {
	var (
		mu     sync.Mutex
		stored *dataset.DataSet
		tsUID  string
	)
	addr := startProvider(t, netdicom.ServiceProviderParams{
		MaxPDULength: 16384,
		CStore: func(ctx context.Context, conn netdicom.ConnectionState, transferSyntaxUID, sopClassUID, sopInstanceUID string, ds *dataset.DataSet) dimse.Status {
			mu.Lock()
			defer mu.Unlock()
			stored = ds
			tsUID = transferSyntaxUID
			assert.Equal(t, ctImageUID, sopClassUID)
			assert.Equal(t, "1.2.826.0.1.3680043.2.1125.1", sopInstanceUID)
			return dimse.Success
		},
	})
	a := connect(t, addr, netdicom.ProposedContext{
		AbstractSyntaxUID:  ctImageUID,
		TransferSyntaxUIDs: []string{dataset.ExplicitVRLittleEndian.UID},
	})
	assert.Equal(t, uint32(16384), a.PeerMaxPDULength())

	ds := ctDataSet(t, 3*16384)
	require.NoError(t, a.CStore(context.Background(), ds))
	require.NoError(t, a.Release(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, stored)
	assert.Equal(t, dataset.ExplicitVRLittleEndian.UID, tsUID)
	assert.True(t, ds.Equal(stored), "got %v", stored)
}

func TestStoreStatus(t *testing.T) {
	addr := startProvider(t, netdicom.ServiceProviderParams{
		CStore: func(ctx context.Context, conn netdicom.ConnectionState, transferSyntaxUID, sopClassUID, sopInstanceUID string, ds *dataset.DataSet) dimse.Status {
			return dimse.Status{Status: dimse.CStoreOutOfResources, ErrorComment: "disk full"}
		},
	})
	a := connect(t, addr, netdicom.ProposedContext{AbstractSyntaxUID: ctImageUID})
	defer a.Release(context.Background())

	err := a.CStore(context.Background(), ctDataSet(t, 16))
	var statusErr *netdicom.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, dimse.CStoreOutOfResources, statusErr.Status.Status)
	assert.Equal(t, "disk full", statusErr.Status.ErrorComment)
}

func TestRejectCalledAETitle(t *testing.T) {
	addr := startProvider(t, netdicom.ServiceProviderParams{AETitle: "SCP"})
	_, err := netdicom.Connect(context.Background(), addr, netdicom.ServiceUserParams{
		CalledAETitle:  "SOMEONE",
		CallingAETitle: "SCU",
		SOPClasses:     []string{verificationUID},
	})
	require.ErrorIs(t, err, netdicom.ErrAssociationRejected)
	var rj *netdicom.RejectError
	require.ErrorAs(t, err, &rj)
	assert.Equal(t, pdu.ResultRejectedPermanent, rj.Result)
	assert.Equal(t, pdu.SourceULServiceUser, rj.Source)
	assert.Equal(t, pdu.RejectReasonCalledAETitleNotRecognized, rj.Reason)
}

func TestRejectNoAcceptableContext(t *testing.T) {
	addr := startProvider(t, netdicom.ServiceProviderParams{
		SupportedContexts: map[string][]string{verificationUID: dataset.StandardTransferSyntaxes},
	})
	_, err := netdicom.Connect(context.Background(), addr, netdicom.ServiceUserParams{
		CalledAETitle:  "SCP",
		CallingAETitle: "SCU",
		SOPClasses:     []string{ctImageUID},
	})
	var rj *netdicom.RejectError
	require.ErrorAs(t, err, &rj)
	assert.Equal(t, pdu.SourceULServiceUser, rj.Source)
}

func TestConnectRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	_, err = netdicom.Connect(context.Background(), addr, netdicom.ServiceUserParams{
		CalledAETitle:  "SCP",
		CallingAETitle: "SCU",
		SOPClasses:     []string{verificationUID},
	})
	assert.Error(t, err)
}

func TestAbortUnblocksReceive(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	sp := netdicom.NewServiceProvider(netdicom.ServiceProviderParams{})

	type result struct {
		p   *netdicom.Payload
		err error
	}
	received := make(chan result, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			received <- result{err: err}
			return
		}
		a, err := sp.Accept(context.Background(), conn)
		if err != nil {
			received <- result{err: err}
			return
		}
		p, err := a.Receive(context.Background())
		received <- result{p, err}
	}()

	a := connect(t, listener.Addr().String(), netdicom.ProposedContext{AbstractSyntaxUID: verificationUID})
	// Give the provider time to block in Receive.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, a.Abort())

	select {
	case r := <-received:
		assert.Nil(t, r.p)
		assert.ErrorIs(t, r.err, netdicom.ErrAssociationClosed)
		assert.ErrorIs(t, r.err, netdicom.ErrAssociationAborted)
		var abort *netdicom.AbortError
		require.ErrorAs(t, r.err, &abort)
		assert.False(t, abort.Local)
		assert.Equal(t, pdu.AbortSourceServiceUser, abort.Source)
	case <-time.After(10 * time.Second):
		t.Fatal("Receive did not return after A-ABORT")
	}

	var abort *netdicom.AbortError
	require.ErrorAs(t, a.Err(), &abort)
	assert.True(t, abort.Local)
	assert.ErrorIs(t, a.Abort(), netdicom.ErrAssociationClosed)
}

// silentPeer accepts one association and then ignores A-RELEASE-RQ. It
// writes raw after the A-ASSOCIATE-AC, then reports the PDUs it received
// after the handshake.
func silentPeer(t *testing.T, listener net.Listener, raw ...[]byte) <-chan pdu.PDU {
	received := make(chan pdu.PDU, 8)
	go func() {
		defer close(received)
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		v, err := pdu.ReadPDU(conn, 0)
		if err != nil {
			return
		}
		rq := v.(*pdu.AAssociateRQ)
		items := []pdu_item.SubItem{&pdu_item.ApplicationContextItem{Name: pdu_item.DICOMApplicationContextItemName}}
		for _, item := range rq.Items {
			pc, ok := item.(*pdu_item.PresentationContextItem)
			if !ok {
				continue
			}
			items = append(items, &pdu_item.PresentationContextItem{
				Type:      pdu_item.ItemTypePresentationContextResponse,
				ContextID: pc.ContextID,
				Result:    pdu_item.PresentationContextAccepted,
				Items:     []pdu_item.SubItem{&pdu_item.TransferSyntaxSubItem{Name: pc.TransferSyntaxes()[0]}},
			})
		}
		items = append(items, &pdu_item.UserInformationItem{
			Items: []pdu_item.SubItem{&pdu_item.UserInformationMaximumLengthItem{MaximumLengthReceived: 16384}},
		})
		data, err := pdu.EncodePDU(&pdu.AAssociateAC{
			ProtocolVersion: pdu.CurrentProtocolVersion,
			CalledAETitle:   rq.CalledAETitle,
			CallingAETitle:  rq.CallingAETitle,
			Items:           items,
		})
		if err != nil {
			return
		}
		if _, err := conn.Write(data); err != nil {
			return
		}
		for _, b := range raw {
			if _, err := conn.Write(b); err != nil {
				return
			}
		}
		for {
			v, err := pdu.ReadPDU(conn, 0)
			if err != nil {
				return
			}
			received <- v
		}
	}()
	return received
}

func TestReleaseTimeoutAborts(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	received := silentPeer(t, listener)

	a, err := netdicom.Connect(context.Background(), listener.Addr().String(), netdicom.ServiceUserParams{
		CalledAETitle:  "SILENT",
		CallingAETitle: "SCU",
		SOPClasses:     []string{verificationUID},
		ReleaseTimeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)

	start := time.Now()
	err = a.Release(context.Background())
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.ErrorIs(t, err, netdicom.ErrTimeout)
	assert.ErrorIs(t, err, netdicom.ErrAssociationAborted)

	var got []pdu.PDU
	for v := range received {
		got = append(got, v)
	}
	require.Len(t, got, 2)
	assert.IsType(t, &pdu.AReleaseRq{}, got[0])
	abort, ok := got[1].(*pdu.AAbort)
	require.True(t, ok, "got %v", got[1])
	assert.Equal(t, pdu.AbortSourceServiceUser, abort.Source)
}

func TestSendWhileReleasing(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	received := silentPeer(t, listener)

	a, err := netdicom.Connect(context.Background(), listener.Addr().String(), netdicom.ServiceUserParams{
		CalledAETitle:  "SILENT",
		CallingAETitle: "SCU",
		SOPClasses:     []string{verificationUID},
		ReleaseTimeout: 500 * time.Millisecond,
	})
	require.NoError(t, err)

	released := make(chan error, 1)
	go func() { released <- a.Release(context.Background()) }()
	select {
	case v := <-received:
		assert.IsType(t, &pdu.AReleaseRq{}, v)
	case <-time.After(5 * time.Second):
		t.Fatal("no A-RELEASE-RQ")
	}

	// The statemachine now waits for A-RELEASE-RP.
	err = a.CEcho(context.Background())
	assert.ErrorIs(t, err, netdicom.ErrReleasePending)
	assert.NotErrorIs(t, err, netdicom.ErrAssociationAborted)

	err = <-released
	assert.ErrorIs(t, err, netdicom.ErrTimeout)

	var got []pdu.PDU
	for v := range received {
		got = append(got, v)
	}
	require.Len(t, got, 1)
	abort, ok := got[0].(*pdu.AAbort)
	require.True(t, ok, "got %v", got[0])
	assert.Equal(t, pdu.AbortSourceServiceUser, abort.Source)
}

func TestInvalidPDUClosesConnection(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	// PDU type 0x09 does not exist.
	received := silentPeer(t, listener, []byte{0x09, 0, 0, 0, 0, 0})

	a, err := netdicom.Connect(context.Background(), listener.Addr().String(), netdicom.ServiceUserParams{
		CalledAETitle:      "SILENT",
		CallingAETitle:     "SCU",
		SOPClasses:         []string{verificationUID},
		AssociationTimeout: time.Minute,
	})
	require.NoError(t, err)

	start := time.Now()
	var got []pdu.PDU
	for v := range received {
		got = append(got, v)
	}
	assert.Less(t, time.Since(start), 10*time.Second)
	require.Len(t, got, 1)
	abort, ok := got[0].(*pdu.AAbort)
	require.True(t, ok, "got %v", got[0])
	assert.Equal(t, pdu.AbortSourceServiceProvider, abort.Source)
	assert.Equal(t, pdu.AbortReasonInvalidPDUParameterValue, abort.Reason)

	_, err = a.Receive(context.Background())
	assert.ErrorIs(t, err, netdicom.ErrAssociationClosed)
	assert.ErrorIs(t, err, pdu.ErrMalformedPDU)
}

func TestAcceptCancelledContext(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	client, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	defer client.Close()
	conn, err := listener.Accept()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sp := netdicom.NewServiceProvider(netdicom.ServiceProviderParams{})
	a, err := sp.Accept(ctx, conn)
	assert.Nil(t, a)
	assert.ErrorIs(t, err, context.Canceled)

	// The provider drops the connection without waiting for a request.
	require.NoError(t, client.SetReadDeadline(time.Now().Add(10*time.Second)))
	_, err = client.Read(make([]byte, 1))
	assert.False(t, isTimeout(err), "connection left open: %v", err)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func studyQuery() *dataset.DataSet {
	return dataset.New(
		dataset.MustNewElement(tag.QueryRetrieveLevel, dataset.CS, "STUDY"),
		dataset.MustNewElement(tag.PatientID, dataset.LO, "P123"),
		dataset.MustNewElement(tag.StudyInstanceUID, dataset.UI, ""),
	)
}

func TestFind(t *testing.T) {
	addr := startProvider(t, netdicom.ServiceProviderParams{
		CFind: func(ctx context.Context, conn netdicom.ConnectionState, transferSyntaxUID, sopClassUID string, query *dataset.DataSet) <-chan netdicom.CFindResult {
			ch := make(chan netdicom.CFindResult)
			go func() {
				defer close(ch)
				id, _ := query.GetString(tag.PatientID)
				for _, uid := range []string{"1.2.3.1", "1.2.3.2", "1.2.3.3"} {
					ch <- netdicom.CFindResult{DataSet: dataset.New(
						dataset.MustNewElement(tag.PatientID, dataset.LO, id),
						dataset.MustNewElement(tag.StudyInstanceUID, dataset.UI, uid),
					)}
				}
			}()
			return ch
		},
	})
	a := connect(t, addr, netdicom.ProposedContext{AbstractSyntaxUID: studyFindUID})
	defer a.Release(context.Background())

	matches, err := a.CFind(context.Background(), studyFindUID, studyQuery())
	require.NoError(t, err)
	require.Len(t, matches, 3)
	for i, m := range matches {
		id, err := m.GetString(tag.PatientID)
		require.NoError(t, err)
		assert.Equal(t, "P123", id)
		uid, err := m.GetString(tag.StudyInstanceUID)
		require.NoError(t, err)
		assert.Equal(t, []string{"1.2.3.1", "1.2.3.2", "1.2.3.3"}[i], uid)
	}
}

func TestFindFailure(t *testing.T) {
	addr := startProvider(t, netdicom.ServiceProviderParams{
		CFind: func(ctx context.Context, conn netdicom.ConnectionState, transferSyntaxUID, sopClassUID string, query *dataset.DataSet) <-chan netdicom.CFindResult {
			ch := make(chan netdicom.CFindResult, 2)
			ch <- netdicom.CFindResult{DataSet: dataset.New(dataset.MustNewElement(tag.PatientID, dataset.LO, "P1"))}
			ch <- netdicom.CFindResult{Err: errors.New("database unavailable")}
			close(ch)
			return ch
		},
	})
	a := connect(t, addr, netdicom.ProposedContext{AbstractSyntaxUID: studyFindUID})
	defer a.Release(context.Background())

	matches, err := a.CFind(context.Background(), studyFindUID, studyQuery())
	assert.Len(t, matches, 1)
	var statusErr *netdicom.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, dimse.CFindUnableToProcess, statusErr.Status.Status)
}

func TestFindCancel(t *testing.T) {
	addr := startProvider(t, netdicom.ServiceProviderParams{
		CFind: func(ctx context.Context, conn netdicom.ConnectionState, transferSyntaxUID, sopClassUID string, query *dataset.DataSet) <-chan netdicom.CFindResult {
			ch := make(chan netdicom.CFindResult)
			go func() {
				defer close(ch)
				for {
					select {
					case ch <- netdicom.CFindResult{DataSet: dataset.New(dataset.MustNewElement(tag.PatientID, dataset.LO, "P1"))}:
						time.Sleep(10 * time.Millisecond)
					case <-ctx.Done():
						return
					}
				}
			}()
			return ch
		},
	})
	a := connect(t, addr, netdicom.ProposedContext{AbstractSyntaxUID: studyFindUID})
	defer a.Release(context.Background())

	ctx := context.Background()
	id := a.NextMessageID()
	require.NoError(t, a.Send(ctx, &dimse.CFindRq{
		AffectedSOPClassUID: studyFindUID,
		MessageID:           id,
		CommandDataSetType:  dimse.CommandDataSetTypeNonNull,
	}, studyQuery()))

	p, err := a.Receive(ctx)
	require.NoError(t, err)
	rsp := p.Command.(*dimse.CFindRsp)
	assert.True(t, rsp.Status.IsPending())
	require.NoError(t, a.CCancel(ctx, id))

	for {
		p, err := a.Receive(ctx)
		require.NoError(t, err)
		rsp := p.Command.(*dimse.CFindRsp)
		assert.Equal(t, id, rsp.MessageIDBeingRespondedTo)
		if !rsp.Status.IsPending() {
			assert.Equal(t, dimse.StatusCancel, rsp.Status.Status)
			break
		}
	}
}

func TestMove(t *testing.T) {
	addr := startProvider(t, netdicom.ServiceProviderParams{
		CMove: func(ctx context.Context, conn netdicom.ConnectionState, transferSyntaxUID, sopClassUID, destAE string, query *dataset.DataSet) (dimse.SubOperations, dimse.Status) {
			assert.Equal(t, "ARCHIVE", destAE)
			return dimse.SubOperations{Completed: 2, Failed: 1}, dimse.Status{Status: dimse.StatusSubOperationsWarning}
		},
	})
	a := connect(t, addr, netdicom.ProposedContext{AbstractSyntaxUID: studyMoveUID})
	defer a.Release(context.Background())

	rsp, err := a.CMove(context.Background(), studyMoveUID, "ARCHIVE", studyQuery())
	require.NoError(t, err)
	assert.Equal(t, dimse.SubOperations{Completed: 2, Failed: 1}, rsp.SubOperations)
	assert.True(t, rsp.Status.IsWarning())
}

func TestUnsupportedOperations(t *testing.T) {
	addr := startProvider(t, netdicom.ServiceProviderParams{})
	a := connect(t, addr,
		netdicom.ProposedContext{AbstractSyntaxUID: patientGetUID},
		netdicom.ProposedContext{AbstractSyntaxUID: ctImageUID})
	defer a.Release(context.Background())
	ctx := context.Background()

	id := a.NextMessageID()
	require.NoError(t, a.Send(ctx, &dimse.CGetRq{
		AffectedSOPClassUID: patientGetUID,
		MessageID:           id,
		CommandDataSetType:  dimse.CommandDataSetTypeNonNull,
	}, studyQuery()))
	p, err := a.Receive(ctx)
	require.NoError(t, err)
	rsp, ok := p.Command.(*dimse.CGetRsp)
	require.True(t, ok, "got %v", p.Command)
	assert.Equal(t, id, rsp.MessageIDBeingRespondedTo)
	assert.Equal(t, dimse.StatusUnrecognizedOperation, rsp.Status.Status)

	err = a.CStore(ctx, ctDataSet(t, 16))
	var statusErr *netdicom.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, dimse.StatusUnrecognizedOperation, statusErr.Status.Status)
}

func TestSendValidatesDataSet(t *testing.T) {
	addr := startProvider(t, netdicom.ServiceProviderParams{})
	a := connect(t, addr, netdicom.ProposedContext{AbstractSyntaxUID: verificationUID})
	defer a.Release(context.Background())

	err := a.Send(context.Background(), &dimse.CEchoRq{
		AffectedSOPClassUID: verificationUID,
		MessageID:           a.NextMessageID(),
		CommandDataSetType:  dimse.CommandDataSetTypeNull,
	}, dataset.New())
	assert.Error(t, err)
	require.NoError(t, a.CEcho(context.Background()))
}
