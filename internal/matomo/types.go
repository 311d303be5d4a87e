package matomo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ActionTypePageView is the action type tag that maps to a destination event
// row. Every other type is skipped.
const ActionTypePageView = "action"

// Visit is one source-recorded browsing session as returned by
// Live.getLastVisitsDetails. Field types are tolerant of the API's habit of
// switching between strings and numbers across Matomo versions.
type Visit struct {
	ID              FlexString `json:"idVisit"`
	FirstActionTime UnixTime   `json:"firstActionTimestamp"`

	BrowserName         string `json:"browserName"`
	OperatingSystemName string `json:"operatingSystemName"`
	OperatingSystem     string `json:"operatingSystem"`
	DeviceType          string `json:"deviceType"`

	CountryCode  string `json:"countryCode"`
	RegionCode   string `json:"regionCode"`
	City         string `json:"city"`
	Resolution   string `json:"resolution"`
	LanguageCode string `json:"languageCode"`
	ReferrerURL  string `json:"referrerUrl"`

	Actions []Action `json:"actionDetails"`
}

// Action is one recorded event within a Visit.
type Action struct {
	Type      string   `json:"type"`
	URL       string   `json:"url"`
	Time      UnixTime `json:"timestamp"`
	PageTitle string   `json:"pageTitle"`
	Title     string   `json:"title"`
}

// FlexString decodes a JSON string, number, or null into a string. Matomo
// serializes idVisit as a number on some installations and a string on
// others.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("matomo: flexible string: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

// UnixTime decodes a Unix-seconds timestamp that may arrive as a JSON number
// or a numeric string. Valid is false for null, absent, or empty values so
// callers can distinguish "missing" from the epoch.
type UnixTime struct {
	Time  time.Time
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *UnixTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" || string(b) == `""` {
		u.Valid = false
		return nil
	}
	if b[0] == '"' {
		b = bytes.Trim(b, `"`)
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("matomo: unix timestamp: %w", err)
	}
	// Accept fractional seconds by truncating.
	fl, err := n.Float64()
	if err != nil {
		return fmt.Errorf("matomo: unix timestamp %q: %w", n.String(), err)
	}
	u.Time = time.Unix(int64(fl), 0)
	u.Valid = true
	return nil
}
