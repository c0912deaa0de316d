package netdicom

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/giesekow/go-dcmnet/pdu/pdu_item"
	"github.com/grailbio/go-dicom/dicomlog"
	"github.com/grailbio/go-dicom/dicomuid"
)

// PresentationContext is one negotiated presentation context.
type PresentationContext struct {
	ID                byte
	AbstractSyntaxUID string
	// TransferSyntaxUIDs are the syntaxes proposed by the requestor.
	TransferSyntaxUIDs []string
	Result             pdu_item.PresentationContextResult
	// AcceptedTransferSyntaxUID is empty unless Result is accepted.
	AcceptedTransferSyntaxUID string
}

func (pc PresentationContext) String() string {
	return fmt.Sprintf("context{id:%d abstract:%s transfer:%s result:%v}",
		pc.ID, dicomuid.UIDString(pc.AbstractSyntaxUID), dicomuid.UIDString(pc.AcceptedTransferSyntaxUID), pc.Result)
}

// contextManager manages mappings between a contextID and the corresponding
// abstract-syntax UID (aka SOP). UID is of form "1.2.840.10008.5.1.4.1.1.1.2".
// It is written by the state machine during negotiation and read-only once
// the association is established.
type contextManager struct {
	label string // for diagnostics only.

	contextIDToEntry map[byte]*PresentationContext
	// abstractSyntaxToEntry holds the first accepted context of each
	// abstract syntax.
	abstractSyntaxToEntry map[string]*PresentationContext

	calledAETitle  string
	callingAETitle string

	// The largest P-DATA-TF we accept, as advertised.
	maxPDUSize uint32

	// Info about the the other side of the communication, gleaned from
	// A-ASSOCIATE-* pdu. Zero peerMaxPDUSize means no limit.
	peerMaxPDUSize uint32
	// UID that identifies the peer type. It's supposed to be globally unique.
	peerImplementationClassUID string
	// Implementation version, virtually meaningless since its format isn't standardized.
	peerImplementationVersionName string

	// tmpRequests used only on the client (requestor) side. It holds the
	// contextid->presentationcontext mapping generated from the
	// A_ASSOCIATE_RQ PDU. Once an A_ASSOCIATE_AC PDU arrives, tmpRequests
	// is matched against the response PDU and
	// contextid->{abstractsyntax,transfersyntax} mappings are filled.
	tmpRequests map[byte]*pdu_item.PresentationContextItem
}

// errNoAcceptedContext is the negotiation outcome that turns into an
// association rejection (acceptor) or abort (requestor).
var errNoAcceptedContext = fmt.Errorf("no presentation context accepted: %w", ErrNoPresentationContext)

// The peer max PDU size assumed until the user information item says
// otherwise. It is the value used by Osirix & pynetdicom.
const defaultPeerMaxPDUSize = 16384

// maxProposedContexts is the number of odd context IDs in 1..255.
const maxProposedContexts = 128

func newContextManager(label string, maxPDUSize uint32) *contextManager {
	return &contextManager{
		label:                 label,
		contextIDToEntry:      make(map[byte]*PresentationContext),
		abstractSyntaxToEntry: make(map[string]*PresentationContext),
		maxPDUSize:            maxPDUSize,
		peerMaxPDUSize:        defaultPeerMaxPDUSize,
		tmpRequests:           make(map[byte]*pdu_item.PresentationContextItem),
	}
}

func (m *contextManager) userInformation(implClassUID, implVersionName string) *pdu_item.UserInformationItem {
	items := []pdu_item.SubItem{
		&pdu_item.UserInformationMaximumLengthItem{MaximumLengthReceived: m.maxPDUSize},
		&pdu_item.ImplementationClassUIDSubItem{Name: implClassUID},
	}
	if implVersionName != "" {
		items = append(items, &pdu_item.ImplementationVersionNameSubItem{Name: implVersionName})
	}
	return &pdu_item.UserInformationItem{Items: items}
}

// Called by the user (client) to produce a list to be embedded in an
// A_REQUEST_RQ.Items. The PDU is sent when running as a service user (client).
func (m *contextManager) generateAssociateRequest(params ServiceUserParams) ([]pdu_item.SubItem, error) {
	if len(params.Contexts) > maxProposedContexts {
		return nil, fmt.Errorf("dicom.generateAssociateRequest(%s): %d presentation contexts, at most %d fit", m.label, len(params.Contexts), maxProposedContexts)
	}
	m.calledAETitle = params.CalledAETitle
	m.callingAETitle = params.CallingAETitle
	items := []pdu_item.SubItem{
		&pdu_item.ApplicationContextItem{Name: pdu_item.DICOMApplicationContextItemName},
	}
	var contextID byte = 1
	for _, pc := range params.Contexts {
		item := pdu_item.NewPresentationContextRequest(contextID, pc.AbstractSyntaxUID, pc.TransferSyntaxUIDs)
		items = append(items, item)
		m.tmpRequests[contextID] = item
		contextID += 2 // must be odd.
	}
	items = append(items, m.userInformation(params.ImplementationClassUID, params.ImplementationVersionName))
	return items, nil
}

// Called when A_ASSOCIATE_RQ pdu arrives, on the provider side. For each
// proposed context it picks the first proposed transfer syntax that
// supported lists for the abstract syntax. Returns a list of items to be
// sent in the A_ASSOCIATE_AC pdu, or errNoAcceptedContext.
func (m *contextManager) onAssociateRequest(requestItems []pdu_item.SubItem, params ServiceProviderParams) ([]pdu_item.SubItem, error) {
	responses := []pdu_item.SubItem{
		&pdu_item.ApplicationContextItem{Name: pdu_item.DICOMApplicationContextItemName},
	}
	accepted := 0
	for _, requestItem := range requestItems {
		switch ri := requestItem.(type) {
		case *pdu_item.PresentationContextItem:
			if ri.ContextID%2 == 0 {
				return nil, fmt.Errorf("dicom.onAssociateRequest(%s): even presentation context ID %d", m.label, ri.ContextID)
			}
			if _, ok := m.contextIDToEntry[ri.ContextID]; ok {
				return nil, fmt.Errorf("dicom.onAssociateRequest(%s): duplicate presentation context ID %d", m.label, ri.ContextID)
			}
			pc := negotiate(ri, params.SupportedContexts)
			pickedTransferSyntaxUID := pc.AcceptedTransferSyntaxUID
			if pc.Result == pdu_item.PresentationContextAccepted {
				accepted++
			} else if len(pc.TransferSyntaxUIDs) > 0 {
				// The value is not significant in a rejection, but the
				// sub-item must be present.
				pickedTransferSyntaxUID = pc.TransferSyntaxUIDs[0]
			}
			dicomlog.Vprintf(1, "dicom.onAssociateRequest(%s): %v", m.label, pc)
			responses = append(responses, &pdu_item.PresentationContextItem{
				Type:      pdu_item.ItemTypePresentationContextResponse,
				ContextID: ri.ContextID,
				Result:    pc.Result,
				Items:     []pdu_item.SubItem{&pdu_item.TransferSyntaxSubItem{Name: pickedTransferSyntaxUID}},
			})
			m.addContextMapping(pc)
		case *pdu_item.UserInformationItem:
			m.onUserInformation(ri)
		}
	}
	if accepted == 0 {
		return nil, errNoAcceptedContext
	}
	responses = append(responses, m.userInformation(params.ImplementationClassUID, params.ImplementationVersionName))
	return responses, nil
}

// negotiate decides one proposed context against the acceptor's
// capabilities. It depends on nothing else, so the same proposal always
// gets the same answer.
func negotiate(ri *pdu_item.PresentationContextItem, supported map[string][]string) *PresentationContext {
	pc := &PresentationContext{
		ID:                 ri.ContextID,
		AbstractSyntaxUID:  ri.AbstractSyntax(),
		TransferSyntaxUIDs: ri.TransferSyntaxes(),
	}
	if pc.AbstractSyntaxUID == "" || len(pc.TransferSyntaxUIDs) == 0 {
		pc.Result = pdu_item.PresentationContextProviderRejectionNoReason
		return pc
	}
	ours, ok := supported[pc.AbstractSyntaxUID]
	if !ok {
		pc.Result = pdu_item.PresentationContextProviderRejectionAbstractSyntaxNotSupported
		return pc
	}
	for _, proposed := range pc.TransferSyntaxUIDs {
		for _, ts := range ours {
			if ts == proposed {
				pc.Result = pdu_item.PresentationContextAccepted
				pc.AcceptedTransferSyntaxUID = proposed
				return pc
			}
		}
	}
	pc.Result = pdu_item.PresentationContextProviderRejectionTransferSyntaxNotSupported
	return pc
}

// Called by the user (client) to when A_ASSOCIATE_AC PDU arrives from the provider.
func (m *contextManager) onAssociateResponse(responses []pdu_item.SubItem) error {
	for _, responseItem := range responses {
		switch ri := responseItem.(type) {
		case *pdu_item.PresentationContextItem:
			request, ok := m.tmpRequests[ri.ContextID]
			if !ok {
				return fmt.Errorf("dicom.onAssociateResponse(%s): unknown context ID %d in A_ASSOCIATE_AC: %v", m.label, ri.ContextID, ri)
			}
			delete(m.tmpRequests, ri.ContextID)
			pc := &PresentationContext{
				ID:                 ri.ContextID,
				AbstractSyntaxUID:  request.AbstractSyntax(),
				TransferSyntaxUIDs: request.TransferSyntaxes(),
				Result:             ri.Result,
			}
			if ri.Result == pdu_item.PresentationContextAccepted {
				tss := ri.TransferSyntaxes()
				if len(tss) != 1 {
					return fmt.Errorf("dicom.onAssociateResponse(%s): %d transfer syntaxes in accepted context %v", m.label, len(tss), ri)
				}
				if !contains(pc.TransferSyntaxUIDs, tss[0]) {
					return fmt.Errorf("dicom.onAssociateResponse(%s): transfer syntax %s was not proposed for context %d",
						m.label, dicomuid.UIDString(tss[0]), ri.ContextID)
				}
				pc.AcceptedTransferSyntaxUID = tss[0]
			}
			dicomlog.Vprintf(1, "dicom.onAssociateResponse(%s): %v", m.label, pc)
			m.addContextMapping(pc)
		case *pdu_item.UserInformationItem:
			m.onUserInformation(ri)
		}
	}
	// Contexts the acceptor did not answer are rejected.
	for id, request := range m.tmpRequests {
		m.addContextMapping(&PresentationContext{
			ID:                 id,
			AbstractSyntaxUID:  request.AbstractSyntax(),
			TransferSyntaxUIDs: request.TransferSyntaxes(),
			Result:             pdu_item.PresentationContextProviderRejectionNoReason,
		})
	}
	m.tmpRequests = nil
	if len(m.abstractSyntaxToEntry) == 0 {
		return errNoAcceptedContext
	}
	return nil
}

func (m *contextManager) onUserInformation(ri *pdu_item.UserInformationItem) {
	for _, subItem := range ri.Items {
		switch c := subItem.(type) {
		case *pdu_item.UserInformationMaximumLengthItem:
			m.peerMaxPDUSize = c.MaximumLengthReceived
		case *pdu_item.ImplementationClassUIDSubItem:
			m.peerImplementationClassUID = c.Name
		case *pdu_item.ImplementationVersionNameSubItem:
			m.peerImplementationVersionName = c.Name
		}
	}
}

// Add a mapping between a (global) UID and a (per-session) context ID.
func (m *contextManager) addContextMapping(pc *PresentationContext) {
	doassert(pc.ID%2 == 1, pc.ID)
	if pc.Result == pdu_item.PresentationContextAccepted {
		doassert(pc.AbstractSyntaxUID != "", pc)
		doassert(pc.AcceptedTransferSyntaxUID != "", pc)
		if _, ok := m.abstractSyntaxToEntry[pc.AbstractSyntaxUID]; !ok {
			m.abstractSyntaxToEntry[pc.AbstractSyntaxUID] = pc
		}
	}
	m.contextIDToEntry[pc.ID] = pc
}

// Convert an UID to a context ID.
func (m *contextManager) lookupByAbstractSyntaxUID(name string) (PresentationContext, error) {
	e, ok := m.abstractSyntaxToEntry[name]
	if !ok {
		return PresentationContext{}, fmt.Errorf("dicom.lookupByAbstractSyntaxUID(%s): %s: %w", m.label, dicomuid.UIDString(name), ErrNoPresentationContext)
	}
	return *e, nil
}

// Convert a contextID to a UID.
func (m *contextManager) lookupByContextID(contextID byte) (PresentationContext, error) {
	e, ok := m.contextIDToEntry[contextID]
	if !ok {
		return PresentationContext{}, fmt.Errorf("dicom.lookupByContextID(%s): unknown context ID %d: %w", m.label, contextID, ErrNoPresentationContext)
	}
	if e.Result != pdu_item.PresentationContextAccepted {
		return PresentationContext{}, fmt.Errorf("dicom.lookupByContextID(%s): context %d was %v: %w", m.label, contextID, e.Result, ErrNoPresentationContext)
	}
	return *e, nil
}

// presentationContexts lists every context, accepted or not, by ID.
func (m *contextManager) presentationContexts() []PresentationContext {
	pcs := make([]PresentationContext, 0, len(m.contextIDToEntry))
	for _, e := range m.contextIDToEntry {
		pcs = append(pcs, *e)
	}
	sort.Slice(pcs, func(i, j int) bool { return pcs[i].ID < pcs[j].ID })
	return pcs
}

// checkApplicationContext reports whether the A-ASSOCIATE-RQ names the DICOM
// application context.
func checkApplicationContext(items []pdu_item.SubItem) error {
	for _, item := range items {
		if ac, ok := item.(*pdu_item.ApplicationContextItem); ok {
			if strings.TrimRight(ac.Name, "\x00 ") != pdu_item.DICOMApplicationContextItemName {
				return fmt.Errorf("unsupported application context %q", ac.Name)
			}
			return nil
		}
	}
	return errors.New("no application context item")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
