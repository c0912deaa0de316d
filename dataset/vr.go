package dataset

// VR is a two-letter value representation code. P3.5 6.2.
type VR string

const (
	AE VR = "AE"
	AS VR = "AS"
	AT VR = "AT"
	CS VR = "CS"
	DA VR = "DA"
	DS VR = "DS"
	DT VR = "DT"
	FD VR = "FD"
	FL VR = "FL"
	IS VR = "IS"
	LO VR = "LO"
	LT VR = "LT"
	OB VR = "OB"
	OD VR = "OD"
	OF VR = "OF"
	OL VR = "OL"
	OV VR = "OV"
	OW VR = "OW"
	PN VR = "PN"
	SH VR = "SH"
	SL VR = "SL"
	SQ VR = "SQ"
	SS VR = "SS"
	ST VR = "ST"
	SV VR = "SV"
	TM VR = "TM"
	UC VR = "UC"
	UI VR = "UI"
	UL VR = "UL"
	UN VR = "UN"
	UR VR = "UR"
	US VR = "US"
	UT VR = "UT"
	UV VR = "UV"
)

type valueKind int

const (
	kindText valueKind = iota
	kindInts
	kindFloats
	kindTags
	kindBytes
	kindSequence
)

type vrInfo struct {
	kind valueKind
	// longLength VRs use two reserved bytes and a 32-bit length under
	// explicit VR. All others use a 16-bit length.
	longLength bool
	// pad is appended to odd-length values.
	pad byte
	// multiValued text VRs separate values with a backslash.
	multiValued bool
	// size is the width of one numeric value, or the word size that gets
	// byte-swapped for binary VRs under big endian.
	size int
	// unsigned integer VRs.
	unsigned bool
}

var vrTable = map[VR]vrInfo{
	AE: {kind: kindText, pad: ' ', multiValued: true},
	AS: {kind: kindText, pad: ' ', multiValued: true},
	AT: {kind: kindTags, size: 4},
	CS: {kind: kindText, pad: ' ', multiValued: true},
	DA: {kind: kindText, pad: ' ', multiValued: true},
	DS: {kind: kindText, pad: ' ', multiValued: true},
	DT: {kind: kindText, pad: ' ', multiValued: true},
	FD: {kind: kindFloats, size: 8},
	FL: {kind: kindFloats, size: 4},
	IS: {kind: kindText, pad: ' ', multiValued: true},
	LO: {kind: kindText, pad: ' ', multiValued: true},
	LT: {kind: kindText, pad: ' '},
	OB: {kind: kindBytes, longLength: true, size: 1},
	OD: {kind: kindBytes, longLength: true, size: 8},
	OF: {kind: kindBytes, longLength: true, size: 4},
	OL: {kind: kindBytes, longLength: true, size: 4},
	OV: {kind: kindBytes, longLength: true, size: 8},
	OW: {kind: kindBytes, longLength: true, size: 2},
	PN: {kind: kindText, pad: ' ', multiValued: true},
	SH: {kind: kindText, pad: ' ', multiValued: true},
	SL: {kind: kindInts, size: 4},
	SQ: {kind: kindSequence, longLength: true},
	SS: {kind: kindInts, size: 2},
	ST: {kind: kindText, pad: ' '},
	SV: {kind: kindInts, longLength: true, size: 8},
	TM: {kind: kindText, pad: ' ', multiValued: true},
	UC: {kind: kindText, longLength: true, pad: ' ', multiValued: true},
	UI: {kind: kindText, pad: 0, multiValued: true},
	UL: {kind: kindInts, size: 4, unsigned: true},
	UN: {kind: kindBytes, longLength: true, size: 1},
	UR: {kind: kindText, longLength: true, pad: ' '},
	US: {kind: kindInts, size: 2, unsigned: true},
	UT: {kind: kindText, longLength: true, pad: ' '},
	UV: {kind: kindInts, longLength: true, size: 8, unsigned: true},
}

// IsKnown is true for the VRs defined in P3.5.
func (vr VR) IsKnown() bool {
	_, ok := vrTable[vr]
	return ok
}

// HasLongLength is true for VRs whose explicit-VR header carries a 32-bit
// length.
func (vr VR) HasLongLength() bool {
	return vrTable[vr].longLength
}

// IsText is true for string-valued VRs.
func (vr VR) IsText() bool {
	info, ok := vrTable[vr]
	return ok && info.kind == kindText
}

// IsBinary is true for OB, OW, UN and friends.
func (vr VR) IsBinary() bool {
	info, ok := vrTable[vr]
	return ok && info.kind == kindBytes
}

func (vr VR) String() string {
	return string(vr)
}

// vrFromDictionary turns a dictionary VR string into a VR, mapping the
// dictionary's pseudo VRs to the representation used on the wire.
func vrFromDictionary(s string) VR {
	switch s {
	case "xs", "US or SS":
		return US
	case "ox", "OB or OW":
		return OB
	}
	vr := VR(s)
	if !vr.IsKnown() {
		return UN
	}
	return vr
}
