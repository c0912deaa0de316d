package pdu

import (
	"github.com/grailbio/go-dicom/dicomio"
)

// AReleaseRq is the A-RELEASE-RQ PDU. Its body is 4 reserved bytes.
type AReleaseRq struct{}

func (AReleaseRq) Type() Type { return TypeAReleaseRq }

func (AReleaseRq) Read(d *dicomio.Decoder) (PDU, error) {
	d.Skip(4)
	if err := d.Error(); err != nil {
		return nil, err
	}
	return &AReleaseRq{}, nil
}

func (pdu *AReleaseRq) Write() ([]byte, error) {
	return make([]byte, 4), nil
}

func (pdu *AReleaseRq) String() string {
	return "A_RELEASE_RQ"
}

// AReleaseRp is the A-RELEASE-RP PDU.
type AReleaseRp struct{}

func (AReleaseRp) Type() Type { return TypeAReleaseRp }

func (AReleaseRp) Read(d *dicomio.Decoder) (PDU, error) {
	d.Skip(4)
	if err := d.Error(); err != nil {
		return nil, err
	}
	return &AReleaseRp{}, nil
}

func (pdu *AReleaseRp) Write() ([]byte, error) {
	return make([]byte, 4), nil
}

func (pdu *AReleaseRp) String() string {
	return "A_RELEASE_RP"
}
