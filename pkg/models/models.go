package models

import (
	"errors"
	"strings"
	"time"
)

// Credentials are the three cookies of an authenticated browser session
type Credentials struct {
	SessionID string `json:"sessionid" yaml:"sessionid"`
	DSUserID  string `json:"ds_user_id" yaml:"ds_user_id"`
	CSRFToken string `json:"csrftoken" yaml:"csrftoken"`
}

// Cookie is a single name/value pair to inject into the browser
type Cookie struct {
	Name  string
	Value string
}

// Validate reports every missing credential field at once
func (c Credentials) Validate() error {
	var errs []error
	if strings.TrimSpace(c.SessionID) == "" {
		errs = append(errs, errors.New("sessionid is required"))
	}
	if strings.TrimSpace(c.DSUserID) == "" {
		errs = append(errs, errors.New("ds_user_id is required"))
	}
	if strings.TrimSpace(c.CSRFToken) == "" {
		errs = append(errs, errors.New("csrftoken is required"))
	}
	return errors.Join(errs...)
}

// Cookies returns the credentials as cookies in injection order
func (c Credentials) Cookies() []Cookie {
	return []Cookie{
		{Name: "sessionid", Value: c.SessionID},
		{Name: "ds_user_id", Value: c.DSUserID},
		{Name: "csrftoken", Value: c.CSRFToken},
	}
}

type DiscoveredAccount struct {
	Username      string `json:"username"`
	ProfileURL    string `json:"profile_url"`
	SourcePostURL string `json:"source_post_url,omitempty"`
}

// ProfileRecord is the unit returned to callers. Every field defaults to the
// empty string when the page does not show it.
type ProfileRecord struct {
	Username         string `json:"username"`
	FullName         string `json:"full_name"`
	Biography        string `json:"biography"`
	ExternalURL      string `json:"external_url"`
	Address          string `json:"address"`
	BusinessCategory string `json:"business_category"`
	ProfileURL       string `json:"profile_url"`
	SourcePostURL    string `json:"source_post_url,omitempty"`
}

// ScrapeRequest is the inbound call: credentials plus a desired account count
type ScrapeRequest struct {
	Cookies     Credentials `json:"cookies"`
	MaxProfiles int         `json:"max_profiles"`
}

// DefaultMaxProfiles is used when a request leaves max_profiles unset
const DefaultMaxProfiles = 10

// Normalize fills defaults in place
func (r *ScrapeRequest) Normalize() {
	if r.MaxProfiles == 0 {
		r.MaxProfiles = DefaultMaxProfiles
	}
}

// Validate checks the request against the configured ceiling
func (r ScrapeRequest) Validate(maxAllowed int) error {
	var errs []error
	if err := r.Cookies.Validate(); err != nil {
		errs = append(errs, err)
	}
	if r.MaxProfiles < 1 {
		errs = append(errs, errors.New("max_profiles must be positive"))
	}
	if maxAllowed > 0 && r.MaxProfiles > maxAllowed {
		errs = append(errs, errors.New("max_profiles exceeds the configured limit"))
	}
	return errors.Join(errs...)
}

type ScrapeResponse struct {
	Profiles []ProfileRecord `json:"profiles"`
	Run      RunSummary      `json:"run"`
}

// RunSummary describes how a run went
type RunSummary struct {
	ID             string         `json:"id"`
	Owner          string         `json:"owner"`
	Outcome        string         `json:"outcome"`
	Requested      int            `json:"requested"`
	Discovered     int            `json:"discovered"`
	PostsOpened    int            `json:"posts_opened"`
	PostFailures   int            `json:"post_failures"`
	ScrollAttempts int            `json:"scroll_attempts"`
	FieldFailures  map[string]int `json:"field_failures,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	Duration       time.Duration  `json:"duration_ns"`
}
