// Package profile reads the public fields of an account's profile page.
//
// Every field is looked up independently. A lookup that finds nothing leaves
// the field empty and is reported as absent; a lookup whose mechanism broke
// (bad selector, panic, unreadable page) is reported as failed. Neither ever
// stops the other fields from being read, and Fetch itself never fails.
package profile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"igsaved/pkg/browser"
	"igsaved/pkg/instagram"
	"igsaved/pkg/logger"
	"igsaved/pkg/models"
)

// Field names as they appear in ProfileRecord's JSON
const (
	FieldFullName         = "full_name"
	FieldBiography        = "biography"
	FieldAddress          = "address"
	FieldBusinessCategory = "business_category"
	FieldExternalURL      = "external_url"
)

// FieldStatus is the outcome of one field lookup
type FieldStatus string

const (
	FieldFound  FieldStatus = "found"
	FieldAbsent FieldStatus = "absent"
	FieldFailed FieldStatus = "failed"
)

// FieldResult is the outcome of one field lookup
type FieldResult struct {
	Status FieldStatus
	Err    error
}

// Report describes how each field of a record was obtained
type Report struct {
	Fields map[string]FieldResult
	// Err is set when the page itself could not be loaded or read
	Err error
}

// Failed returns the names of fields whose lookup broke
func (r Report) Failed() []string {
	var out []string
	for _, name := range fieldOrder {
		if res, ok := r.Fields[name]; ok && res.Status == FieldFailed {
			out = append(out, name)
		}
	}
	return out
}

// FieldSpec describes how to read one field from the page
type FieldSpec struct {
	Name     string
	Selector string
	// Attr reads an attribute instead of the element's text
	Attr      string
	Transform func(string) string
	Assign    func(*models.ProfileRecord, string)
}

var fieldOrder = []string{FieldFullName, FieldBiography, FieldAddress, FieldBusinessCategory, FieldExternalURL}

// DefaultFields builds the field lookups for sel
func DefaultFields(sel instagram.Selectors) []FieldSpec {
	sel = sel.WithDefaults()
	return []FieldSpec{
		{
			Name:     FieldFullName,
			Selector: sel.FullName,
			Assign:   func(r *models.ProfileRecord, v string) { r.FullName = v },
		},
		{
			Name:     FieldBiography,
			Selector: sel.Biography,
			Assign:   func(r *models.ProfileRecord, v string) { r.Biography = v },
		},
		{
			Name:     FieldAddress,
			Selector: sel.Address,
			Assign:   func(r *models.ProfileRecord, v string) { r.Address = v },
		},
		{
			Name:     FieldBusinessCategory,
			Selector: sel.BusinessCategory,
			Assign:   func(r *models.ProfileRecord, v string) { r.BusinessCategory = v },
		},
		{
			Name:      FieldExternalURL,
			Selector:  sel.ExternalURL,
			Attr:      "href",
			Transform: instagram.UnwrapExternalURL,
			Assign:    func(r *models.ProfileRecord, v string) { r.ExternalURL = v },
		},
	}
}

type compiledField struct {
	FieldSpec
	matcher cascadia.Selector
	err     error
}

// Fetcher reads profile pages
type Fetcher struct {
	headerSelector string
	headerTimeout  time.Duration
	fields         []compiledField
	logger         logger.Logger
}

// NewFetcher creates a fetcher. A field whose selector does not compile is
// reported as failed on every fetch.
func NewFetcher(sel instagram.Selectors, headerTimeout time.Duration, fields []FieldSpec, log logger.Logger) *Fetcher {
	sel = sel.WithDefaults()
	if fields == nil {
		fields = DefaultFields(sel)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	f := &Fetcher{
		headerSelector: sel.ProfileHeader,
		headerTimeout:  headerTimeout,
		logger:         log.WithField("component", "profile"),
	}
	for _, spec := range fields {
		m, err := cascadia.Compile(spec.Selector)
		if err != nil {
			err = fmt.Errorf("selector %q: %w", spec.Selector, err)
			f.logger.WithError(err).WithField("field", spec.Name).Warn("Invalid profile field selector")
		}
		f.fields = append(f.fields, compiledField{FieldSpec: spec, matcher: m, err: err})
	}
	return f
}

// Fetch visits username's profile and reads every field it can. The record
// always carries Username and ProfileURL.
func (f *Fetcher) Fetch(ctx context.Context, b browser.Browser, username string) (models.ProfileRecord, Report) {
	rec := models.ProfileRecord{
		Username:   username,
		ProfileURL: instagram.GetUserProfileURL(username),
	}
	report := Report{Fields: make(map[string]FieldResult, len(f.fields))}
	log := f.logger.WithField("username", username)

	if err := b.Navigate(ctx, rec.ProfileURL); err != nil {
		report.Err = err
		f.failAll(&report, err)
		log.WithError(err).Warn("Could not open profile page")
		return rec, report
	}

	// A page without the usual header (private, restricted or redesigned)
	// still gets parsed; absent fields stay empty
	if err := b.WaitVisible(ctx, f.headerSelector, f.headerTimeout); err != nil {
		log.WithError(err).Debug("Profile header did not render")
	}

	html, err := b.HTML(ctx)
	if err != nil {
		report.Err = err
		f.failAll(&report, err)
		log.WithError(err).Warn("Could not read profile page")
		return rec, report
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		report.Err = err
		f.failAll(&report, err)
		return rec, report
	}

	for _, field := range f.fields {
		value, res := f.lookup(doc, field)
		if res.Status == FieldFound {
			field.Assign(&rec, value)
		}
		report.Fields[field.Name] = res
	}

	if res := report.Fields[FieldFullName]; res.Status == FieldAbsent {
		if name := fullNameFromMeta(doc, username); name != "" {
			rec.FullName = name
			report.Fields[FieldFullName] = FieldResult{Status: FieldFound}
		}
	}

	fields := map[string]interface{}{"found": countStatus(report, FieldFound)}
	if failed := report.Failed(); len(failed) > 0 {
		fields["failed"] = strings.Join(failed, ",")
	}
	log.DebugWithFields("Profile fetched", fields)
	return rec, report
}

// lookup reads one field, turning a panic into a failed result
func (f *Fetcher) lookup(doc *goquery.Document, field compiledField) (value string, res FieldResult) {
	defer func() {
		if r := recover(); r != nil {
			value = ""
			res = FieldResult{Status: FieldFailed, Err: fmt.Errorf("field %s: panic: %v", field.Name, r)}
		}
	}()

	if field.err != nil {
		return "", FieldResult{Status: FieldFailed, Err: field.err}
	}

	sel := doc.FindMatcher(field.matcher).First()
	if sel.Length() == 0 {
		return "", FieldResult{Status: FieldAbsent}
	}

	if field.Attr != "" {
		value, _ = sel.Attr(field.Attr)
	} else {
		value = sel.Text()
	}
	value = strings.TrimSpace(value)
	if field.Transform != nil && value != "" {
		value = strings.TrimSpace(field.Transform(value))
	}
	if value == "" {
		return "", FieldResult{Status: FieldAbsent}
	}
	return value, FieldResult{Status: FieldFound}
}

func (f *Fetcher) failAll(report *Report, err error) {
	for _, field := range f.fields {
		report.Fields[field.Name] = FieldResult{Status: FieldFailed, Err: err}
	}
}

// fullNameFromMeta reads the display name from og:title, which has the form
// "Full Name (@username) • Instagram photos and videos"
func fullNameFromMeta(doc *goquery.Document, username string) string {
	title, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content")
	if !ok {
		return ""
	}
	i := strings.Index(title, " (@")
	if i <= 0 {
		return ""
	}
	name := strings.TrimSpace(title[:i])
	if strings.EqualFold(name, username) {
		return ""
	}
	return name
}

func countStatus(r Report, s FieldStatus) int {
	n := 0
	for _, res := range r.Fields {
		if res.Status == s {
			n++
		}
	}
	return n
}
