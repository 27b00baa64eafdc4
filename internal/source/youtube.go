package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cast"

	"ytmon/internal/models"
	"ytmon/internal/providers"
	"ytmon/internal/structures"
)

const (
	historyURL  = "https://www.youtube.com/feed/history"
	channelsURL = "https://www.youtube.com/feed/channels"
	homeURL     = "https://www.youtube.com"

	maxHistoryItems     = 20
	maxRecommendedItems = 3
	maxWalkDepth        = 24

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var (
	initialDataRe = regexp.MustCompile(`(?s)ytInitialData\s*=\s*(\{.*?\});`)
	durationRe    = regexp.MustCompile(`^\d{1,2}:\d{2}(:\d{2})?$`)
	subCountRe    = regexp.MustCompile(`([\d.,]+)\s*(만명|천명|억명|만|천|억|[KkMm])?`)
)

// YouTubeSource scrapes the account's feed pages with Netscape cookie
// credentials and parses the embedded ytInitialData document.
type YouTubeSource struct {
	cookiesPath string
	client      *http.Client
	logger      providers.Logger
}

func NewYouTubeSource(conf *structures.Config, logger providers.Logger) Source {
	return &YouTubeSource{
		cookiesPath: conf.Source.CookiesPath,
		client:      &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
	}
}

func (s *YouTubeSource) FetchHistory(ctx context.Context) ([]*models.WatchEvent, error) {
	data, err := s.fetchInitialData(ctx, historyURL)
	if err != nil {
		return nil, err
	}

	// Priority: lockup (current UI) > videoRenderer (legacy) > Shorts.
	var w videoWalker
	w.collect(data, 0)
	videos := append(w.lockups, w.renderers...)
	videos = append(videos, w.shorts...)
	if len(videos) > maxHistoryItems {
		videos = videos[:maxHistoryItems]
	}
	s.logger.Debugf(providers.TypeApp, "history fetch: %d entries", len(videos))
	return videos, nil
}

func (s *YouTubeSource) FetchSubscriptions(ctx context.Context) (*Subscriptions, error) {
	data, err := s.fetchInitialData(ctx, channelsURL)
	if err != nil {
		return nil, err
	}

	var channels []*models.Channel
	walkNodes(data, 0, "channelRenderer", func(node map[string]any) bool {
		if c := channelFromRenderer(node); c != nil {
			channels = append(channels, c)
		}
		return false
	})
	models.SortChannelsByName(channels)
	return &Subscriptions{TotalCount: len(channels), Channels: channels}, nil
}

func (s *YouTubeSource) FetchRecommended(ctx context.Context) ([]*models.WatchEvent, error) {
	data, err := s.fetchInitialData(ctx, homeURL)
	if err != nil {
		return nil, err
	}

	var w videoWalker
	w.collect(data, 0)
	videos := append(w.lockups, w.renderers...)
	if len(videos) > maxRecommendedItems {
		videos = videos[:maxRecommendedItems]
	}
	return videos, nil
}

func (s *YouTubeSource) fetchInitialData(ctx context.Context, url string) (map[string]any, error) {
	cookies, err := s.loadCookies()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-us,en;q=0.5")
	req.Header.Set("Cookie", cookies)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrAuthInvalid
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	// response bodies are multi-MB HTML documents; cap the read at 16MB
	const maxBody = 16 << 20
	body, err := io.ReadAll(http.MaxBytesReader(nil, resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return extractInitialData(string(body))
}

func extractInitialData(html string) (map[string]any, error) {
	m := initialDataRe.FindStringSubmatch(html)
	if m == nil {
		return nil, fmt.Errorf("ytInitialData not found in response")
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(m[1]), &data); err != nil {
		return nil, fmt.Errorf("parse ytInitialData: %w", err)
	}
	return data, nil
}

// loadCookies reads a Netscape cookies.txt file into a Cookie header
// value. Missing or empty credentials are an auth failure, not a
// transport one.
func (s *YouTubeSource) loadCookies() (string, error) {
	f, err := os.Open(s.cookiesPath)
	if err != nil {
		return "", fmt.Errorf("%w: open cookies %s: %v", ErrAuthInvalid, s.cookiesPath, err)
	}
	defer f.Close()

	var pairs []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimPrefix(line, "#HttpOnly_")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			continue
		}
		pairs = append(pairs, fields[5]+"="+fields[6])
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("%w: read cookies: %v", ErrAuthInvalid, err)
	}
	if len(pairs) == 0 {
		return "", fmt.Errorf("%w: cookies file is empty", ErrAuthInvalid)
	}
	return strings.Join(pairs, "; "), nil
}

// videoWalker gathers watch entries by renderer kind during one
// recursive pass over ytInitialData.
type videoWalker struct {
	lockups   []*models.WatchEvent
	renderers []*models.WatchEvent
	shorts    []*models.WatchEvent
}

func (w *videoWalker) collect(node any, depth int) {
	if depth > maxWalkDepth {
		return
	}
	switch n := node.(type) {
	case map[string]any:
		if l, ok := n["lockupViewModel"].(map[string]any); ok {
			if digString(l, "contentType") == "LOCKUP_CONTENT_TYPE_VIDEO" {
				if e := eventFromLockup(l); e != nil {
					w.lockups = append(w.lockups, e)
				}
			}
			return
		}
		if vr, ok := n["videoRenderer"].(map[string]any); ok {
			if e := eventFromRenderer(vr); e != nil {
				w.renderers = append(w.renderers, e)
			}
			return
		}
		if sl, ok := n["shortsLockupViewModel"].(map[string]any); ok {
			if e := eventFromShorts(sl); e != nil {
				w.shorts = append(w.shorts, e)
			}
			return
		}
		for key, child := range n {
			if key == "continuationItemRenderer" || key == "adSlotRenderer" {
				continue
			}
			w.collect(child, depth+1)
		}
	case []any:
		for _, child := range n {
			w.collect(child, depth+1)
		}
	}
}

// walkNodes invokes fn on every map carrying the given key. fn returns
// true to stop the walk.
func walkNodes(node any, depth int, key string, fn func(map[string]any) bool) bool {
	if depth > maxWalkDepth {
		return false
	}
	switch n := node.(type) {
	case map[string]any:
		if target, ok := n[key].(map[string]any); ok {
			return fn(target)
		}
		for _, child := range n {
			if walkNodes(child, depth+1, key, fn) {
				return true
			}
		}
	case []any:
		for _, child := range n {
			if walkNodes(child, depth+1, key, fn) {
				return true
			}
		}
	}
	return false
}

func eventFromLockup(l map[string]any) *models.WatchEvent {
	videoID := digString(l, "contentId")
	if videoID == "" {
		return nil
	}

	meta := dig(l, "metadata", "lockupMetadataViewModel")
	title := strings.TrimSpace(digString(meta, "title", "content"))
	if title == "" {
		title = models.UnknownField
	}

	channel := models.UnknownField
	rows := digSlice(meta, "metadata", "contentMetadataViewModel", "metadataRows")
	if len(rows) > 0 {
		parts := digSlice(rows[0], "metadataParts")
		if len(parts) > 0 {
			if c := strings.TrimSpace(digString(parts[0], "text", "content")); c != "" {
				channel = c
			}
		}
	}

	duration := lockupDuration(l, rows)

	return &models.WatchEvent{
		VideoID:   videoID,
		Title:     title,
		Channel:   channel,
		Duration:  duration,
		Thumbnail: thumbnailURL(videoID),
		URL:       watchURL(videoID),
	}
}

func lockupDuration(l map[string]any, metadataRows []any) string {
	for _, overlay := range digSlice(l, "contentImage", "thumbnailViewModel", "overlays") {
		o, ok := overlay.(map[string]any)
		if !ok {
			continue
		}
		if badgeVM, ok := o["thumbnailOverlayBadgeViewModel"].(map[string]any); ok {
			for _, badge := range digSlice(badgeVM, "thumbnailBadges") {
				text := digString(badge, "thumbnailBadgeViewModel", "text")
				style := digString(badge, "thumbnailBadgeViewModel", "badgeStyle")
				if style == "THUMBNAIL_OVERLAY_BADGE_STYLE_LIVE" || text == "LIVE" || text == "라이브" {
					return "LIVE"
				}
				if durationRe.MatchString(text) {
					return text
				}
			}
		}
		if ts, ok := o["thumbnailOverlayTimeStatusRenderer"].(map[string]any); ok {
			if t := digString(ts, "text", "simpleText"); t != "" {
				return t
			}
		}
		if bo, ok := o["thumbnailBottomOverlayViewModel"].(map[string]any); ok {
			for _, badge := range digSlice(bo, "badges") {
				if t := digString(badge, "thumbnailBadgeViewModel", "text"); t != "" {
					return t
				}
			}
		}
	}
	for _, row := range metadataRows {
		for _, part := range digSlice(row, "metadataParts") {
			if t := digString(part, "text", "content"); durationRe.MatchString(t) {
				return t
			}
		}
	}
	return models.UnknownField
}

func eventFromRenderer(vr map[string]any) *models.WatchEvent {
	videoID := digString(vr, "videoId")
	if videoID == "" {
		return nil
	}

	title := models.UnknownField
	if t := digString(vr, "title", "simpleText"); t != "" {
		title = t
	} else if runs := digSlice(vr, "title", "runs"); len(runs) > 0 {
		if t := digString(runs[0], "text"); t != "" {
			title = t
		}
	}

	channel := models.UnknownField
	for _, key := range []string{"longBylineText", "shortBylineText", "ownerText"} {
		if runs := digSlice(vr, key, "runs"); len(runs) > 0 {
			if c := digString(runs[0], "text"); c != "" {
				channel = c
				break
			}
		}
		if c := digString(vr, key, "simpleText"); c != "" {
			channel = c
			break
		}
	}

	duration := digString(vr, "lengthText", "simpleText")
	if duration == "" {
		duration = models.UnknownField
	}

	return &models.WatchEvent{
		VideoID:   videoID,
		Title:     strings.TrimSpace(title),
		Channel:   channel,
		Duration:  duration,
		Thumbnail: thumbnailURL(videoID),
		URL:       watchURL(videoID),
	}
}

func eventFromShorts(sl map[string]any) *models.WatchEvent {
	videoID := ""
	if entityID := digString(sl, "entityId"); entityID != "" {
		segs := strings.Split(entityID, "-")
		videoID = segs[len(segs)-1]
	}
	if videoID == "" || videoID == "item" {
		videoID = digString(sl, "onTap", "innertubeCommand", "reelWatchEndpoint", "videoId")
	}
	if videoID == "" {
		return nil
	}
	title := digString(sl, "overlayMetadata", "primaryText", "content")
	if title == "" {
		title = models.ShortFormChannel
	}
	return &models.WatchEvent{
		VideoID:   videoID,
		Title:     title,
		Channel:   models.ShortFormChannel,
		Duration:  models.ShortFormDuration,
		Thumbnail: thumbnailURL(videoID),
		URL:       homeURL + "/shorts/" + videoID,
	}
}

func channelFromRenderer(ch map[string]any) *models.Channel {
	name := strings.TrimSpace(digString(ch, "title", "simpleText"))
	if name == "" {
		return nil
	}

	// The channels feed swaps these two: videoCountText carries the
	// subscriber text, subscriberCountText the handle.
	subText := digString(ch, "videoCountText", "simpleText")
	handle := digString(ch, "subscriberCountText", "simpleText")

	thumb := ""
	if thumbs := digSlice(ch, "thumbnail", "thumbnails"); len(thumbs) > 0 {
		thumb = digString(thumbs[len(thumbs)-1], "url")
		if thumb != "" && !strings.HasPrefix(thumb, "http") {
			thumb = "https:" + thumb
		}
	}

	channelURL := ""
	if base := digString(ch, "navigationEndpoint", "browseEndpoint", "canonicalBaseUrl"); base != "" {
		channelURL = homeURL + base
	}

	desc := ""
	if runs := digSlice(ch, "descriptionSnippet", "runs"); len(runs) > 0 {
		desc = digString(runs[0], "text")
	}

	return &models.Channel{
		ChannelID:           digString(ch, "channelId"),
		ChannelName:         name,
		Handle:              handle,
		SubscriberCount:     parseSubscriberCount(subText),
		SubscriberCountText: subText,
		Thumbnail:           thumb,
		ChannelURL:          channelURL,
		DescriptionSnippet:  desc,
	}
}

// parseSubscriberCount turns localized subscriber text into a number
// for sorting: "구독자 17만명" -> 170000, "1.23M" -> 1230000.
func parseSubscriberCount(text string) int64 {
	m := subCountRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return 0
	}
	num := cast.ToFloat64(strings.ReplaceAll(m[1], ",", ""))
	switch strings.ToUpper(strings.TrimSuffix(m[2], "명")) {
	case "만":
		return int64(num * 10_000)
	case "천", "K":
		return int64(num * 1_000)
	case "억":
		return int64(num * 100_000_000)
	case "M":
		return int64(num * 1_000_000)
	default:
		return int64(num)
	}
}

func thumbnailURL(videoID string) string {
	return "https://img.youtube.com/vi/" + videoID + "/0.jpg"
}

func watchURL(videoID string) string {
	return homeURL + "/watch?v=" + videoID
}

func dig(node any, keys ...string) any {
	cur := node
	for _, key := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

func digString(node any, keys ...string) string {
	s, _ := dig(node, keys...).(string)
	return s
}

func digSlice(node any, keys ...string) []any {
	s, _ := dig(node, keys...).([]any)
	return s
}
