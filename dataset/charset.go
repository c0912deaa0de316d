package dataset

import (
	"fmt"
	"strings"

	"github.com/giesekow/go-dcmnet/tag"
	"github.com/grailbio/go-dicom/dicomlog"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// CodingSystem translates the raw bytes of text values into UTF-8. PN values
// may use all three decoders, one per component group; other VRs only use
// Ideographic. P3.5 6.2. A nil decoder leaves bytes as they are.
type CodingSystem struct {
	Alphabetic  *encoding.Decoder
	Ideographic *encoding.Decoder
	Phonetic    *encoding.Decoder
}

// Mapping of DICOM defined terms to htmlindex names. "" means 7-bit ASCII.
var htmlEncodingNames = map[string]string{
	"":                "",
	"ISO_IR 6":        "",
	"ISO 2022 IR 6":   "",
	"ISO_IR 13":       "shift_jis",
	"ISO 2022 IR 13":  "shift_jis",
	"ISO_IR 100":      "iso-8859-1",
	"ISO 2022 IR 100": "iso-8859-1",
	"ISO_IR 101":      "iso-8859-2",
	"ISO 2022 IR 101": "iso-8859-2",
	"ISO_IR 109":      "iso-8859-3",
	"ISO 2022 IR 109": "iso-8859-3",
	"ISO_IR 110":      "iso-8859-4",
	"ISO 2022 IR 110": "iso-8859-4",
	"ISO_IR 126":      "iso-ir-126",
	"ISO 2022 IR 126": "iso-ir-126",
	"ISO_IR 127":      "iso-ir-127",
	"ISO 2022 IR 127": "iso-ir-127",
	"ISO_IR 138":      "iso-ir-138",
	"ISO 2022 IR 138": "iso-ir-138",
	"ISO_IR 144":      "iso-ir-144",
	"ISO 2022 IR 144": "iso-ir-144",
	"ISO_IR 148":      "iso-ir-148",
	"ISO 2022 IR 148": "iso-ir-148",
	"ISO 2022 IR 149": "euc-kr",
	"ISO 2022 IR 159": "iso-2022-jp",
	"ISO_IR 166":      "iso-ir-166",
	"ISO 2022 IR 166": "iso-ir-166",
	"ISO 2022 IR 87":  "iso-2022-jp",
	"ISO_IR 192":      "utf-8",
	"GB18030":         "gb18030",
	"GBK":             "gbk",
}

// ParseCodingSystem maps the values of (0008,0005) to decoders. Unknown terms
// are logged and treated as UTF-8.
func ParseCodingSystem(names []string) (CodingSystem, error) {
	var decoders []*encoding.Decoder
	for _, name := range names {
		htmlName, ok := htmlEncodingNames[strings.TrimSpace(name)]
		if !ok {
			dicomlog.Vprintf(0, "dicom.ParseCodingSystem: unknown character set %q, assuming utf-8", name)
			decoders = append(decoders, nil)
			continue
		}
		if htmlName == "" || htmlName == "utf-8" {
			decoders = append(decoders, nil)
			continue
		}
		enc, err := htmlindex.Get(htmlName)
		if err != nil {
			return CodingSystem{}, fmt.Errorf("ParseCodingSystem: %s (%s): %w", name, htmlName, err)
		}
		decoders = append(decoders, enc.NewDecoder())
	}
	switch len(decoders) {
	case 0:
		return CodingSystem{}, nil
	case 1:
		return CodingSystem{decoders[0], decoders[0], decoders[0]}, nil
	case 2:
		return CodingSystem{decoders[0], decoders[1], decoders[1]}, nil
	}
	return CodingSystem{decoders[0], decoders[1], decoders[2]}, nil
}

// DecodedStrings returns the text values of t converted to UTF-8 using the
// data set's Specific Character Set.
func (ds *DataSet) DecodedStrings(t tag.Tag) ([]string, error) {
	e, err := ds.Get(t)
	if err != nil {
		return nil, err
	}
	values := e.Strings()
	if values == nil {
		return nil, fmt.Errorf("%v: %s is not a text VR: %w", t, e.VR, ErrInvalidValue)
	}
	var names []string
	if cs, ok := ds.Find(tag.SpecificCharacterSet); ok {
		names = cs.Strings()
	}
	cs, err := ParseCodingSystem(names)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(values))
	for i, v := range values {
		if e.VR == PN {
			out[i], err = cs.decodePersonName(v)
		} else {
			out[i], err = decodeWith(cs.Ideographic, v)
		}
		if err != nil {
			return nil, fmt.Errorf("%v: %w", t, err)
		}
	}
	return out, nil
}

func (cs CodingSystem) decodePersonName(v string) (string, error) {
	groups := strings.SplitN(v, "=", 3)
	decoders := []*encoding.Decoder{cs.Alphabetic, cs.Ideographic, cs.Phonetic}
	for i, g := range groups {
		s, err := decodeWith(decoders[i], g)
		if err != nil {
			return "", err
		}
		groups[i] = s
	}
	return strings.Join(groups, "="), nil
}

func decodeWith(d *encoding.Decoder, s string) (string, error) {
	if d == nil {
		return s, nil
	}
	return d.String(s)
}
