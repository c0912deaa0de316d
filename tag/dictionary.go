package tag

import (
	"strings"
	"sync"

	"github.com/grailbio/go-dicom/dicomtag"
)

// Entry is what a dictionary knows about one tag.
type Entry struct {
	Tag  Tag
	VR   string // two-letter VR, e.g. "PN"
	VM   string // e.g. "1", "1-n"
	Name string
}

// Dictionary resolves tags to their standard (or registered private)
// definition. Implementations must be safe for concurrent use.
type Dictionary interface {
	Lookup(t Tag) (Entry, bool)
}

// repeatingGroups lists the group ranges whose elements are defined once for
// the whole range, e.g. curve data (50xx,eeee) and overlays (60xx,eeee).
var repeatingGroups = []Mask{
	{Value: 0x50000000, Mask: 0xFF000000},
	{Value: 0x60000000, Mask: 0xFF000000},
	{Value: 0x7F000000, Mask: 0xFF000000},
}

type standardDictionary struct{}

// StandardDictionary is the process-wide, read-only DICOM data dictionary.
var StandardDictionary Dictionary = standardDictionary{}

func (standardDictionary) Lookup(t Tag) (Entry, bool) {
	if t.IsPrivate() {
		return Entry{}, false
	}
	info, err := dicomtag.Find(dicomtag.Tag{Group: t.Group, Element: t.Element})
	if err != nil {
		for _, m := range repeatingGroups {
			if !m.IsMatch(t) {
				continue
			}
			info, err = dicomtag.Find(dicomtag.Tag{Group: t.Group & 0xFF00, Element: t.Element})
			break
		}
		if err != nil {
			return Entry{}, false
		}
	}
	return Entry{Tag: t, VR: firstVR(info.VR), VM: info.VM, Name: info.Name}, true
}

// firstVR maps "OB or OW" and "US or SS" style entries to their first VR.
func firstVR(vr string) string {
	vr = strings.TrimSpace(vr)
	if len(vr) > 2 {
		vr = vr[:2]
	}
	return vr
}

type privateKey struct {
	creator string
	group   uint16
	element uint8
}

// MapDictionary is a small in-memory dictionary. Entries whose Tag carries a
// creator are private: they match any block the creator was assigned to, so
// (0009,1010) with creator "ACME" and (0009,2010) with the same creator
// resolve to the same entry.
type MapDictionary struct {
	mu      sync.RWMutex
	public  map[uint32]Entry
	private map[privateKey]Entry
}

// NewMapDictionary creates a dictionary holding the given entries.
func NewMapDictionary(entries ...Entry) *MapDictionary {
	d := &MapDictionary{
		public:  make(map[uint32]Entry),
		private: make(map[privateKey]Entry),
	}
	for _, e := range entries {
		d.Add(e)
	}
	return d
}

// Add registers or replaces an entry.
func (d *MapDictionary) Add(e Entry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e.Tag.Creator != "" {
		d.private[privateKey{e.Tag.Creator, e.Tag.Group, uint8(e.Tag.Element)}] = e
		return
	}
	d.public[e.Tag.Card()] = e
}

func (d *MapDictionary) Lookup(t Tag) (Entry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var (
		e  Entry
		ok bool
	)
	if t.Creator != "" {
		e, ok = d.private[privateKey{t.Creator, t.Group, uint8(t.Element)}]
	} else {
		e, ok = d.public[t.Card()]
	}
	if ok {
		e.Tag = t
	}
	return e, ok
}

// Chain consults each dictionary in turn and returns the first hit.
type Chain []Dictionary

func (c Chain) Lookup(t Tag) (Entry, bool) {
	for _, d := range c {
		if e, ok := d.Lookup(t); ok {
			return e, true
		}
	}
	return Entry{}, false
}
