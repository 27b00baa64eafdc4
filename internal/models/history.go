package models

// HistoryDoc is the persisted day-keyed event log:
// "YYYY-MM-DD" -> events in append order.
type HistoryDoc map[string][]*WatchEvent

// MonthlyBreakdown splits a month's count into long-form videos and
// legacy short-form entries.
type MonthlyBreakdown struct {
	Videos int `json:"videos"`
	Shorts int `json:"shorts"`
}

const monthKeyLen = 7 // "YYYY-MM"

// Clone returns a copy of the document. Day slices are copied; events
// themselves are treated as immutable once stored and shared.
func (d HistoryDoc) Clone() HistoryDoc {
	out := make(HistoryDoc, len(d))
	for day, entries := range d {
		out[day] = append([]*WatchEvent(nil), entries...)
	}
	return out
}

// FilterShortForm returns a copy with short-form entries removed and
// days that end up empty dropped.
func (d HistoryDoc) FilterShortForm() HistoryDoc {
	out := make(HistoryDoc, len(d))
	for day, entries := range d {
		kept := make([]*WatchEvent, 0, len(entries))
		for _, e := range entries {
			if !IsShortForm(e) {
				kept = append(kept, e)
			}
		}
		if len(kept) > 0 {
			out[day] = kept
		}
	}
	return out
}

// EventCount returns the total number of stored events, short-form
// legacy entries included.
func (d HistoryDoc) EventCount() int {
	n := 0
	for _, entries := range d {
		n += len(entries)
	}
	return n
}

// MonthlyStats counts long-form events per month key. Months without
// long-form events are absent, not zero.
func MonthlyStats(d HistoryDoc) map[string]int {
	monthly := make(map[string]int)
	for day, entries := range d {
		if len(day) < monthKeyLen {
			continue
		}
		month := day[:monthKeyLen]
		for _, e := range entries {
			if !IsShortForm(e) {
				monthly[month]++
			}
		}
	}
	return monthly
}

// MonthlyBreakdowns groups stored events per month into long-form and
// short-form counters. New short-form events are never stored, so the
// shorts counter only ever reflects legacy data.
func MonthlyBreakdowns(d HistoryDoc) map[string]*MonthlyBreakdown {
	monthly := make(map[string]*MonthlyBreakdown)
	for day, entries := range d {
		if len(day) < monthKeyLen {
			continue
		}
		month := day[:monthKeyLen]
		b, ok := monthly[month]
		if !ok {
			b = &MonthlyBreakdown{}
			monthly[month] = b
		}
		for _, e := range entries {
			if IsShortForm(e) {
				b.Shorts++
			} else {
				b.Videos++
			}
		}
	}
	return monthly
}
