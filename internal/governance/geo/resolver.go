// Package geo infers a lead's country and timezone from whatever contact
// identifiers are available. Lookups are deterministic and side-effect free.
package geo

import (
	"strings"

	"crm_automation_backend/platform/phone"

	"golang.org/x/net/idna"
	"golang.org/x/text/language"
)

// GeoResult holds the resolved country (ISO alpha-2) and IANA timezone.
// Timezone is never set without Country.
type GeoResult struct {
	Country  *string `json:"country,omitempty"`
	Timezone *string `json:"timezone,omitempty"`
}

// Resolver is safe for concurrent use; it holds no mutable state.
type Resolver struct {
	table         CountryTable
	defaultRegion string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDefaultRegion lets national-format phone numbers resolve against region.
func WithDefaultRegion(region string) Option {
	return func(r *Resolver) {
		r.defaultRegion = strings.ToUpper(strings.TrimSpace(region))
	}
}

// NewResolver creates a resolver backed by table.
func NewResolver(table CountryTable, opts ...Option) *Resolver {
	r := &Resolver{table: table}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var idnaProfile = idna.New(idna.MapForLookup(), idna.Transitional(false))

// Detect tries the explicit country first, then the phone number, then the
// email domain. The first signal that resolves wins.
func (r *Resolver) Detect(explicitCountry, phoneNumber, email *string) GeoResult {
	code, ok := r.fromExplicit(deref(explicitCountry))
	if !ok {
		code, ok = phone.Region(deref(phoneNumber), r.defaultRegion)
	}
	if !ok {
		code, ok = r.fromEmail(deref(email))
	}
	if !ok {
		return GeoResult{}
	}

	result := GeoResult{Country: &code}
	if c, found := r.table.ByCode(code); found && c.Timezone != "" {
		tz := c.Timezone
		result.Timezone = &tz
	}
	return result
}

func (r *Resolver) fromExplicit(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	if c, ok := r.table.ByName(raw); ok {
		return c.Code, true
	}

	region, err := language.ParseRegion(raw)
	if err != nil || !region.IsCountry() {
		return "", false
	}
	return region.String(), true
}

func (r *Resolver) fromEmail(raw string) (string, bool) {
	at := strings.LastIndexByte(raw, '@')
	if at < 0 || at == len(raw)-1 {
		return "", false
	}

	domain, err := idnaProfile.ToASCII(strings.TrimSuffix(strings.TrimSpace(raw[at+1:]), "."))
	if err != nil {
		return "", false
	}

	dot := strings.LastIndexByte(domain, '.')
	if dot < 0 {
		return "", false
	}
	tld := domain[dot+1:]
	if len(tld) != 2 {
		return "", false
	}

	c, ok := r.table.ByTLD(tld)
	if !ok {
		return "", false
	}
	return c.Code, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
