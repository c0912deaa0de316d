// Package tag defines the DICOM attribute tag, the (value, mask) matcher used
// for wildcarded tag ranges, and the dictionary lookup consumed by the codec.
package tag

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedTag is returned by Parse and ParseMask for text that is not a
// tag.
var ErrMalformedTag = errors.New("malformed tag")

// Tag is a (group, element) pair. Creator is set only on private data tags
// whose private creator is known; it takes part in equality and ordering.
type Tag struct {
	Group   uint16
	Element uint16
	Creator string
}

// New creates a tag without a private creator.
func New(group, element uint16) Tag {
	return Tag{Group: group, Element: element}
}

// FromCard creates a tag from its 32-bit value, group in the upper half.
func FromCard(card uint32) Tag {
	return Tag{Group: uint16(card >> 16), Element: uint16(card)}
}

// NewPrivate creates a private data tag tied to the given creator.
func NewPrivate(group, element uint16, creator string) Tag {
	return Tag{Group: group, Element: element, Creator: creator}
}

// Card returns the tag as a 32-bit value.
func (t Tag) Card() uint32 {
	return uint32(t.Group)<<16 | uint32(t.Element)
}

// IsPrivate is true for odd groups.
func (t Tag) IsPrivate() bool {
	return t.Group%2 == 1
}

// IsPrivateCreator is true for the elements (gggg,0010)-(gggg,00FF) of a
// private group, which hold creator identifiers.
func (t Tag) IsPrivateCreator() bool {
	return t.IsPrivate() && t.Element >= 0x0010 && t.Element <= 0x00FF
}

// IsGroupLength is true for (gggg,0000).
func (t Tag) IsGroupLength() bool {
	return t.Element == 0x0000
}

// PrivateCreatorTag returns the tag of the element that holds the creator
// identifier for this private data tag: (group, element>>8). For example the
// creator of (0009,1010) lives in (0009,0010).
func (t Tag) PrivateCreatorTag() Tag {
	return Tag{Group: t.Group, Element: t.Element >> 8}
}

// PrivateCreator returns the creator identifier, or "" when absent.
func (t Tag) PrivateCreator() string {
	return t.Creator
}

// WithCreator returns a copy of t tied to the given creator.
func (t Tag) WithCreator(creator string) Tag {
	t.Creator = creator
	return t
}

// Untagged drops the creator; the result is the bare (group, element) pair.
func (t Tag) Untagged() Tag {
	return Tag{Group: t.Group, Element: t.Element}
}

// Compare returns -1, 0 or +1. Tags are ordered by group, then element, then
// creator.
func (t Tag) Compare(o Tag) int {
	switch {
	case t.Group < o.Group:
		return -1
	case t.Group > o.Group:
		return 1
	case t.Element < o.Element:
		return -1
	case t.Element > o.Element:
		return 1
	}
	return strings.Compare(t.Creator, o.Creator)
}

func (t Tag) Equal(o Tag) bool          { return t == o }
func (t Tag) Less(o Tag) bool           { return t.Compare(o) < 0 }
func (t Tag) LessOrEqual(o Tag) bool    { return t.Compare(o) <= 0 }
func (t Tag) Greater(o Tag) bool        { return t.Compare(o) > 0 }
func (t Tag) GreaterOrEqual(o Tag) bool { return t.Compare(o) >= 0 }

// String returns "(gggg,eeee)", or "(gggg,eeee:creator)" for a tag that
// carries a creator. The result is accepted by Parse.
func (t Tag) String() string {
	if t.Creator != "" {
		return fmt.Sprintf("(%04X,%04X:%s)", t.Group, t.Element, t.Creator)
	}
	return fmt.Sprintf("(%04X,%04X)", t.Group, t.Element)
}

// Parse converts text into a tag. Accepted forms are "(gggg,eeee)",
// "gggg,eeee", "ggggeeee" and "(gggg,eeee:creator)". Hex digits are case
// insensitive.
func Parse(s string) (Tag, error) {
	str := strings.TrimSpace(s)
	if strings.HasPrefix(str, "(") {
		if !strings.HasSuffix(str, ")") {
			return Tag{}, fmt.Errorf("tag.Parse %q: unbalanced parenthesis: %w", s, ErrMalformedTag)
		}
		str = str[1 : len(str)-1]
	}
	var creator string
	if i := strings.IndexByte(str, ':'); i >= 0 {
		creator = str[i+1:]
		str = str[:i]
		if creator == "" {
			return Tag{}, fmt.Errorf("tag.Parse %q: empty creator: %w", s, ErrMalformedTag)
		}
	}
	var gs, es string
	if i := strings.IndexByte(str, ','); i >= 0 {
		gs, es = str[:i], str[i+1:]
	} else if len(str) == 8 {
		gs, es = str[:4], str[4:]
	} else {
		return Tag{}, fmt.Errorf("tag.Parse %q: %w", s, ErrMalformedTag)
	}
	group, err := parseHex16(gs)
	if err != nil {
		return Tag{}, fmt.Errorf("tag.Parse %q: group: %w", s, err)
	}
	element, err := parseHex16(es)
	if err != nil {
		return Tag{}, fmt.Errorf("tag.Parse %q: element: %w", s, err)
	}
	return Tag{Group: group, Element: element, Creator: creator}, nil
}

// MustParse is like Parse but panics on error. For static tables.
func MustParse(s string) Tag {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

func parseHex16(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	if len(s) != 4 {
		return 0, ErrMalformedTag
	}
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, ErrMalformedTag
	}
	return uint16(v), nil
}
