package netdicom

import (
	"time"

	"github.com/giesekow/go-dcmnet/dataset"
	"github.com/giesekow/go-dcmnet/pdu"
	"github.com/giesekow/go-dcmnet/sopclass"
	"github.com/grailbio/go-dicom"
)

// DefaultMaxPDULength is the P-DATA-TF size we advertise when the caller
// does not pick one.
const DefaultMaxPDULength = 16384

// Default timeouts. ReleaseTimeout and AssociationTimeout also bound the
// ARTIM timer of P3.8 9.1.5.
const (
	DefaultConnectTimeout     = 30 * time.Second
	DefaultAssociationTimeout = 30 * time.Second
	DefaultReleaseTimeout     = 10 * time.Second
)

// ProposedContext is one presentation context offered by the service user.
type ProposedContext struct {
	AbstractSyntaxUID  string
	TransferSyntaxUIDs []string
}

// ServiceUserParams defines parameters for a service user (requestor).
type ServiceUserParams struct {
	// Application-entity title of the peer. Required.
	CalledAETitle string
	// Application-entity title of the client. Required.
	CallingAETitle string

	// Contexts are proposed in order, with context IDs 1, 3, 5 and so on.
	// If empty, one context is proposed per SOPClasses entry, each with
	// TransferSyntaxes.
	Contexts []ProposedContext

	// List of SOPUIDs wanted by the client. Ignored when Contexts is set.
	SOPClasses []string

	// List of Transfer syntaxes supported by the user. If empty,
	// dataset.StandardTransferSyntaxes is used.
	TransferSyntaxes []string

	// MaxPDULength is the largest P-DATA-TF we accept. Zero means
	// DefaultMaxPDULength.
	MaxPDULength uint32

	ConnectTimeout     time.Duration // TCP dial plus negotiation
	AssociationTimeout time.Duration // wait for A-ASSOCIATE-AC/RJ
	ReleaseTimeout     time.Duration // wait for A-RELEASE-RP

	// Advertised in the user information item. They default to go-dicom's.
	ImplementationClassUID    string
	ImplementationVersionName string
}

func (p ServiceUserParams) withDefaults() ServiceUserParams {
	if len(p.TransferSyntaxes) == 0 {
		p.TransferSyntaxes = dataset.StandardTransferSyntaxes
	}
	if len(p.Contexts) == 0 {
		for _, sop := range p.SOPClasses {
			p.Contexts = append(p.Contexts, ProposedContext{AbstractSyntaxUID: sop, TransferSyntaxUIDs: p.TransferSyntaxes})
		}
	}
	p.Contexts = append([]ProposedContext(nil), p.Contexts...)
	for i := range p.Contexts {
		if len(p.Contexts[i].TransferSyntaxUIDs) == 0 {
			p.Contexts[i].TransferSyntaxUIDs = p.TransferSyntaxes
		}
	}
	if p.MaxPDULength == 0 {
		p.MaxPDULength = DefaultMaxPDULength
	}
	p.MaxPDULength = clampMaxPDULength(p.MaxPDULength)
	if p.ConnectTimeout == 0 {
		p.ConnectTimeout = DefaultConnectTimeout
	}
	if p.AssociationTimeout == 0 {
		p.AssociationTimeout = DefaultAssociationTimeout
	}
	if p.ReleaseTimeout == 0 {
		p.ReleaseTimeout = DefaultReleaseTimeout
	}
	if p.ImplementationClassUID == "" {
		p.ImplementationClassUID = dicom.GoDICOMImplementationClassUID
	}
	if p.ImplementationVersionName == "" {
		p.ImplementationVersionName = dicom.GoDICOMImplementationVersionName
	}
	return p
}

// ServiceProviderParams defines parameters for a ServiceProvider.
type ServiceProviderParams struct {
	// The application-entity title of the server. If set, A-ASSOCIATE-RQs
	// naming another called AE title are rejected.
	AETitle string

	// SupportedContexts maps an abstract syntax UID to the transfer
	// syntaxes accepted for it. If nil, every class in package sopclass is
	// supported with dataset.StandardTransferSyntaxes.
	SupportedContexts map[string][]string

	// MaxPDULength is the largest P-DATA-TF we accept. Zero means
	// DefaultMaxPDULength.
	MaxPDULength uint32

	AssociationTimeout time.Duration // wait for A-ASSOCIATE-RQ
	ReleaseTimeout     time.Duration // wait for the connection to close after A-RELEASE-RP

	ImplementationClassUID    string
	ImplementationVersionName string

	// Called on C_ECHO request. If nil, a C-ECHO call will produce an
	// immediate response with status success.
	CEcho CEchoCallback

	// Called on C_STORE request. If nil, C-STORE calls will produce an
	// unrecognized-operation status.
	CStore CStoreCallback

	// Called on C_FIND request. If nil, C-FIND calls will produce an
	// unrecognized-operation status.
	CFind CFindCallback

	// Called on C_MOVE request. If nil, C-MOVE calls will produce an
	// unrecognized-operation status.
	CMove CMoveCallback
}

func (p ServiceProviderParams) withDefaults() ServiceProviderParams {
	if p.SupportedContexts == nil {
		p.SupportedContexts = map[string][]string{}
		for _, uid := range sopclass.UIDs(sopclass.VerificationClasses, sopclass.StorageClasses,
			sopclass.QRFindClasses, sopclass.QRMoveClasses, sopclass.QRGetClasses) {
			p.SupportedContexts[uid] = dataset.StandardTransferSyntaxes
		}
	}
	if p.MaxPDULength == 0 {
		p.MaxPDULength = DefaultMaxPDULength
	}
	p.MaxPDULength = clampMaxPDULength(p.MaxPDULength)
	if p.AssociationTimeout == 0 {
		p.AssociationTimeout = DefaultAssociationTimeout
	}
	if p.ReleaseTimeout == 0 {
		p.ReleaseTimeout = DefaultReleaseTimeout
	}
	if p.ImplementationClassUID == "" {
		p.ImplementationClassUID = dicom.GoDICOMImplementationClassUID
	}
	if p.ImplementationVersionName == "" {
		p.ImplementationVersionName = dicom.GoDICOMImplementationVersionName
	}
	return p
}

// clampMaxPDULength caps MaxPDULength at what ReadPDU accepts.
func clampMaxPDULength(n uint32) uint32 {
	if n > pdu.DefaultMaxPDUSize {
		return pdu.DefaultMaxPDUSize
	}
	return n
}
