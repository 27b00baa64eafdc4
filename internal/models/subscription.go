package models

import (
	"sort"
	"time"
)

// Channel is one subscribed channel as reported by the feed.
type Channel struct {
	ChannelID           string `json:"channel_id"`
	ChannelName         string `json:"channel_name"`
	Handle              string `json:"handle"`
	SubscriberCount     int64  `json:"subscriber_count"`
	SubscriberCountText string `json:"subscriber_count_text"`
	Thumbnail           string `json:"thumbnail"`
	ChannelURL          string `json:"channel_url"`
	DescriptionSnippet  string `json:"description_snippet,omitempty"`
}

// Snapshot is a full subscription membership capture from one poll
// cycle. At most one snapshot is retained per calendar month.
type Snapshot struct {
	CapturedAt time.Time  `json:"captured_at"`
	Channels   []*Channel `json:"channels"`
}

// SubscriptionsDoc is the persisted month-keyed snapshot log:
// "YYYY-MM" -> snapshot.
type SubscriptionsDoc map[string]*Snapshot

// SubscriptionDelta is the derived month-over-month membership change.
type SubscriptionDelta struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// Clone returns a shallow copy of the document; snapshots are replaced
// wholesale on mutation, never edited in place.
func (d SubscriptionsDoc) Clone() SubscriptionsDoc {
	out := make(SubscriptionsDoc, len(d))
	for month, snap := range d {
		out[month] = snap
	}
	return out
}

// Months returns the snapshot month keys in chronological order.
func (d SubscriptionsDoc) Months() []string {
	months := make([]string, 0, len(d))
	for m := range d {
		months = append(months, m)
	}
	sort.Strings(months)
	return months
}

// Latest returns the most recent snapshot and its month key, or "" and
// nil when no snapshot exists.
func (d SubscriptionsDoc) Latest() (string, *Snapshot) {
	months := d.Months()
	if len(months) == 0 {
		return "", nil
	}
	last := months[len(months)-1]
	return last, d[last]
}

// identityKey is the channel identity used for diffing. The feed
// occasionally omits channel ids; the display name then stands in.
func identityKey(c *Channel) string {
	if c.ChannelID != "" {
		return c.ChannelID
	}
	return c.ChannelName
}

// SubscriptionDiff diffs each snapshot month against the nearest
// earlier snapshot (calendar gaps are skipped, not treated as empty).
// The earliest month has no baseline and produces no delta. Added and
// removed lists carry display names in collated order.
func SubscriptionDiff(d SubscriptionsDoc) map[string]*SubscriptionDelta {
	months := d.Months()
	diff := make(map[string]*SubscriptionDelta)

	for i := 1; i < len(months); i++ {
		prev := channelsByKey(d[months[i-1]])
		cur := channelsByKey(d[months[i]])

		delta := &SubscriptionDelta{Added: []string{}, Removed: []string{}}
		for key, c := range cur {
			if _, ok := prev[key]; !ok {
				delta.Added = append(delta.Added, c.ChannelName)
			}
		}
		for key, c := range prev {
			if _, ok := cur[key]; !ok {
				delta.Removed = append(delta.Removed, c.ChannelName)
			}
		}
		SortNames(delta.Added)
		SortNames(delta.Removed)
		diff[months[i]] = delta
	}
	return diff
}

func channelsByKey(s *Snapshot) map[string]*Channel {
	out := make(map[string]*Channel)
	if s == nil {
		return out
	}
	for _, c := range s.Channels {
		if c == nil || (c.ChannelID == "" && c.ChannelName == "") {
			continue
		}
		out[identityKey(c)] = c
	}
	return out
}
