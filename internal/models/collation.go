package models

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Channel lists sorted "by name" use script-priority collation: native
// script (Hangul) first, then Latin, then digits/symbols, with
// locale-aware ordering inside each class.
const (
	classHangul = iota
	classLatin
	classOther
)

var (
	// collate.Collator keeps internal buffers, so comparisons are
	// serialized.
	collatorMu sync.Mutex
	collator   = collate.New(language.Korean)
)

func scriptClass(name string) int {
	if name == "" {
		return classOther
	}
	r := []rune(name)[0]
	switch {
	case (r >= 0xAC00 && r <= 0xD7A3) || (r >= 0x3130 && r <= 0x318F) || (r >= 0x1100 && r <= 0x11FF):
		return classHangul
	case (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z'):
		return classLatin
	default:
		return classOther
	}
}

// CompareNames is the stable comparator behind every "by name" channel
// ordering. Returns <0, 0 or >0.
func CompareNames(a, b string) int {
	ca, cb := scriptClass(a), scriptClass(b)
	if ca != cb {
		return ca - cb
	}
	if ca == classLatin {
		a, b = strings.ToLower(a), strings.ToLower(b)
	}
	collatorMu.Lock()
	defer collatorMu.Unlock()
	return collator.CompareString(a, b)
}

// SortNames orders a name list in place with CompareNames.
func SortNames(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		return CompareNames(names[i], names[j]) < 0
	})
}

// SortChannelsByName orders channels in place by display name.
func SortChannelsByName(channels []*Channel) {
	sort.SliceStable(channels, func(i, j int) bool {
		return CompareNames(channels[i].ChannelName, channels[j].ChannelName) < 0
	})
}
