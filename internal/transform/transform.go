// Package transform maps Matomo visit/action records onto the destination
// schema's session and event rows.
//
// The mapping is pure: no I/O, no clocks, no randomness except the event
// identifier. Given the same visit, every derivation here returns the same
// session and visit identifiers, which is what allows a visit that reappears
// in a later chunk to collapse onto the session row emitted for its first
// appearance.
//
// Field rules: every textual field is truncated to its destination column
// width (rune cap, not word-aware) before it reaches the SQL sanitizer.
// Browser/OS/device inference is an ordered substring fallthrough over known
// signatures; unmatched values pass through lowercased.
package transform

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"

	"matomo2umami/internal/identity"
	"matomo2umami/internal/matomo"
	"matomo2umami/internal/sqlgen"
)

// Destination tables. Column order is fixed and must match the value order
// produced by SessionRow.Values and EventRow.Values.
var (
	SessionTable = sqlgen.Table{
		Name: "session",
		Columns: []string{
			"session_id", "website_id", "browser", "os", "device", "screen",
			"language", "country", "region", "city", "distinct_id", "created_at",
		},
	}

	EventTable = sqlgen.Table{
		Name: "website_event",
		Columns: []string{
			"event_id", "website_id", "session_id", "visit_id", "created_at",
			"url_path", "url_query", "referrer_path", "referrer_query",
			"referrer_domain", "page_title", "event_type", "hostname",
		},
	}
)

// Destination column widths.
const (
	maxBrowser   = 20
	maxOS        = 20
	maxDevice    = 20
	maxScreen    = 11
	maxLanguage  = 35
	maxCountry   = 2
	maxRegion    = 20
	maxCity      = 50
	maxURLPath   = 500
	maxURLQuery  = 500
	maxReferrer  = 500
	maxPageTitle = 500
	maxHostname  = 100
)

// eventTypePageView is the destination schema's discriminator for page views.
const eventTypePageView = 1

// SessionRow is the deduplicated destination representation of one Visit.
type SessionRow struct {
	SessionID uuid.UUID
	WebsiteID uuid.UUID
	Browser   string
	OS        string
	Device    string
	Screen    *string
	Language  *string
	Country   *string
	Region    *string
	City      *string
	CreatedAt time.Time
}

// Values returns the row aligned with SessionTable.Columns. The distinct
// visitor reference is always NULL; Matomo exports carry no equivalent.
func (r SessionRow) Values() []any {
	return []any{
		r.SessionID, r.WebsiteID, r.Browser, r.OS, r.Device,
		optional(r.Screen), optional(r.Language), optional(r.Country),
		optional(r.Region), optional(r.City), nil, r.CreatedAt,
	}
}

// EventRow is the destination representation of one page-view Action.
type EventRow struct {
	EventID   uuid.UUID
	WebsiteID uuid.UUID
	SessionID uuid.UUID
	VisitID   uuid.UUID
	CreatedAt time.Time

	URLPath  string
	URLQuery *string

	// ReferrerPath and ReferrerQuery are empty strings (not NULL) when the
	// referrer has no path or query; the domain is NULL when extraction fails.
	ReferrerPath   string
	ReferrerQuery  string
	ReferrerDomain *string

	PageTitle *string
	EventType int
	Hostname  *string
}

// Values returns the row aligned with EventTable.Columns.
func (r EventRow) Values() []any {
	return []any{
		r.EventID, r.WebsiteID, r.SessionID, r.VisitID, r.CreatedAt,
		r.URLPath, optional(r.URLQuery), r.ReferrerPath, r.ReferrerQuery,
		optional(r.ReferrerDomain), optional(r.PageTitle), r.EventType,
		optional(r.Hostname),
	}
}

// Transformer derives destination rows for one target website.
type Transformer struct {
	WebsiteID uuid.UUID
}

// DeriveSession maps a visit onto its session row. The session identifier is
// the deterministic derivation from the source visit id, so repeated calls
// for the same visit agree with each other and with the dedup tracker.
func (t Transformer) DeriveSession(v matomo.Visit) (SessionRow, error) {
	id := string(v.ID)
	if id == "" {
		return SessionRow{}, fmt.Errorf("transform: visit has no idVisit")
	}
	if !v.FirstActionTime.Valid {
		return SessionRow{}, fmt.Errorf("transform: visit %s has no firstActionTimestamp", id)
	}

	row := SessionRow{
		SessionID: identity.SessionID(id),
		WebsiteID: t.WebsiteID,
		Browser:   classifyBrowser(v.BrowserName),
		OS:        classifyOS(v.OperatingSystemName, v.OperatingSystem),
		Device:    classifyDevice(v.DeviceType),
		Screen:    capped(v.Resolution, maxScreen),
		Language:  capped(v.LanguageCode, maxLanguage),
		Region:    capped(v.RegionCode, maxRegion),
		City:      capped(v.City, maxCity),
		CreatedAt: v.FirstActionTime.Time,
	}
	if v.CountryCode != "" {
		row.Country = capped(strings.ToUpper(v.CountryCode), maxCountry)
	}
	return row, nil
}

// DeriveEvent maps one action onto an event row. The second return value is
// false when the action is not a page view; such actions contribute no row
// and no error. visitID is the deterministic per-visit identifier shared by
// every event of the same source visit.
func (t Transformer) DeriveEvent(a matomo.Action, v matomo.Visit, visitID uuid.UUID) (EventRow, bool, error) {
	if a.Type != matomo.ActionTypePageView {
		return EventRow{}, false, nil
	}
	id := string(v.ID)
	if id == "" {
		return EventRow{}, false, fmt.Errorf("transform: visit has no idVisit")
	}
	if !a.Time.Valid {
		return EventRow{}, false, fmt.Errorf("transform: action %q in visit %s has no timestamp", a.URL, id)
	}

	urlPath, urlQuery := splitActionURL(a.URL)

	hostname, err := actionHostname(a.URL)
	if err != nil {
		return EventRow{}, false, fmt.Errorf("transform: visit %s: %w", id, err)
	}

	ref := deriveReferrer(v.ReferrerURL)

	row := EventRow{
		EventID:        identity.NewEventID(),
		WebsiteID:      t.WebsiteID,
		SessionID:      identity.SessionID(id),
		VisitID:        visitID,
		CreatedAt:      a.Time.Time,
		URLPath:        urlPath,
		URLQuery:       urlQuery,
		ReferrerPath:   ref.path,
		ReferrerQuery:  ref.query,
		ReferrerDomain: ref.domain,
		PageTitle:      pageTitle(a),
		EventType:      eventTypePageView,
		Hostname:       hostname,
	}
	return row, true, nil
}

// VisitRows transforms a whole visit subtree, all-or-nothing: on any error no
// rows are returned, so a malformed visit contributes nothing to the output.
func (t Transformer) VisitRows(v matomo.Visit) (SessionRow, []EventRow, error) {
	session, err := t.DeriveSession(v)
	if err != nil {
		return SessionRow{}, nil, err
	}

	visitID := identity.VisitID(string(v.ID))
	var events []EventRow
	for _, a := range v.Actions {
		row, ok, err := t.DeriveEvent(a, v, visitID)
		if err != nil {
			return SessionRow{}, nil, err
		}
		if ok {
			events = append(events, row)
		}
	}
	return session, events, nil
}

// classifyBrowser normalizes Matomo browser names onto the destination's
// vocabulary. The signature order is fixed; the first match wins, and
// unmatched names fall through to the lowercased raw value.
func classifyBrowser(name string) string {
	if name == "" {
		name = "Unknown"
	}
	b := strings.ToLower(name)
	switch {
	case strings.Contains(b, "chrome"):
		b = "chrome"
	case strings.Contains(b, "edge"):
		b = "edge-chromium"
	case strings.Contains(b, "firefox"):
		b = "firefox"
	case strings.Contains(b, "opera"):
		b = "opera"
	case strings.Contains(b, "mobile safari"):
		b = "ios"
	case strings.Contains(b, "safari"):
		b = "safari"
	case strings.Contains(b, "yandex"):
		b = "yandexbrowser"
	case strings.Contains(b, "samsung"):
		b = "samsung"
	case strings.Contains(b, "google search app"):
		b = "chromium-webview"
	case strings.Contains(b, "silk"):
		b = "silk"
	}
	return sqlgen.Truncate(b, maxBrowser)
}

// classifyOS normalizes operating system names. Windows is refined through
// the detailed OS string to distinguish 7 / 8.1 / 10 (11 reports as 10 in the
// destination vocabulary).
func classifyOS(name, detail string) string {
	if name == "" {
		name = "Unknown"
	}
	os := strings.ToLower(name)
	switch {
	case strings.Contains(os, "linux") || strings.Contains(os, "ubuntu"):
		os = "Linux"
	case strings.Contains(os, "chrome"):
		os = "Chrome OS"
	case strings.Contains(os, "windows"):
		if detail == "" {
			detail = "Unknown"
		}
		d := strings.ToLower(detail)
		switch {
		case strings.Contains(d, "windows 7"):
			os = "Windows 7"
		case strings.Contains(d, "windows 8.1"):
			os = "Windows 8.1"
		case strings.Contains(d, "windows 10"), strings.Contains(d, "windows 11"):
			os = "Windows 10"
		}
	case strings.Contains(os, "ios"):
		os = "iOS"
	case strings.Contains(os, "mac"):
		os = "Mac OS"
	case strings.Contains(os, "android"):
		os = "Android OS"
	}
	return sqlgen.Truncate(os, maxOS)
}

// classifyDevice normalizes Matomo device types; smartphones and phablets
// both map to "mobile".
func classifyDevice(name string) string {
	if name == "" {
		name = "Unknown"
	}
	d := strings.ToLower(name)
	switch {
	case strings.Contains(d, "desktop"):
		d = "desktop"
	case strings.Contains(d, "tablet"):
		d = "tablet"
	case strings.Contains(d, "smartphone"), strings.Contains(d, "phablet"):
		d = "mobile"
	}
	return sqlgen.Truncate(d, maxDevice)
}

// splitActionURL derives the url_path and url_query fields. The query is
// everything after the first '?'; absent means NULL. An absolute URL has its
// scheme and host stripped; a relative URL is used as-is.
func splitActionURL(raw string) (string, *string) {
	rawPath := raw
	var query *string
	if i := strings.Index(raw, "?"); i >= 0 {
		rawPath = raw[:i]
		q := sqlgen.Truncate(raw[i+1:], maxURLQuery)
		query = &q
	}
	if strings.HasPrefix(rawPath, "http") {
		seg := strings.SplitN(rawPath, "/", 4)
		if len(seg) == 4 {
			rawPath = "/" + seg[3]
		} else {
			rawPath = "/"
		}
	}
	return sqlgen.Truncate(rawPath, maxURLPath), query
}

// actionHostname extracts the host segment of an absolute action URL. A URL
// that claims to be absolute but has no host segment is a malformed record.
func actionHostname(raw string) (*string, error) {
	if !strings.HasPrefix(raw, "http") {
		return nil, nil
	}
	seg := strings.SplitN(raw, "/", 4)
	if len(seg) < 3 || seg[2] == "" {
		return nil, fmt.Errorf("absolute url %q has no host", raw)
	}
	h := sqlgen.Truncate(seg[2], maxHostname)
	return &h, nil
}

type referrerInfo struct {
	path   string
	query  string
	domain *string
}

// deriveReferrer computes the referrer fields from the visit's referrer URL.
// With no referrer at all the path defaults to "/" and the query to the empty
// string. Registrable-domain extraction is best-effort: any parse failure
// yields a NULL domain, silently.
func deriveReferrer(raw string) referrerInfo {
	if raw == "" {
		return referrerInfo{path: "/"}
	}

	var ref referrerInfo
	if u, err := url.Parse(raw); err == nil {
		ref.path = u.Path
		if u.RawQuery != "" {
			ref.query = "?" + u.RawQuery
		}
	}
	if d := baseDomain(raw); d != "" {
		dom := sqlgen.Truncate(d, maxReferrer)
		ref.domain = &dom
	}
	ref.path = sqlgen.Truncate(ref.path, maxReferrer)
	ref.query = sqlgen.Truncate(ref.query, maxReferrer)
	return ref
}

// baseDomain returns the registrable domain (eTLD+1) of a referrer URL, or ""
// when it cannot be determined. Scheme-less referrers like "example.com/x"
// are tolerated.
func baseDomain(raw string) string {
	host := ""
	if u, err := url.Parse(raw); err == nil {
		host = u.Hostname()
	}
	if host == "" {
		h := strings.TrimPrefix(raw, "//")
		if i := strings.IndexAny(h, "/?#"); i >= 0 {
			h = h[:i]
		}
		if i := strings.LastIndex(h, ":"); i >= 0 {
			h = h[:i]
		}
		host = h
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return ""
	}
	dom, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return dom
}

// pageTitle prefers pageTitle over the legacy title field; both absent means
// NULL.
func pageTitle(a matomo.Action) *string {
	title := a.PageTitle
	if title == "" {
		title = a.Title
	}
	return capped(title, maxPageTitle)
}

// capped truncates s to n runes and returns nil for the empty string, which
// renders as NULL downstream.
func capped(s string, n int) *string {
	if s == "" {
		return nil
	}
	s = sqlgen.Truncate(s, n)
	return &s
}

// optional unwraps a nullable string for a values slice.
func optional(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
