// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// NormalizeE164 formats a phone number to E.164 using defaultRegion for
// national-format input. If parsing fails, it returns the trimmed input.
func NormalizeE164(input, defaultRegion string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, ok := parse(trimmed, defaultRegion)
	if !ok {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// Region returns the ISO 3166-1 alpha-2 region of a valid phone number.
// International input ("+971…" or "00971…") needs no default region;
// national input is only resolved when defaultRegion is set.
func Region(input, defaultRegion string) (string, bool) {
	number, ok := parse(strings.TrimSpace(input), defaultRegion)
	if !ok {
		return "", false
	}

	region := phonenumbers.GetRegionCodeForNumber(number)
	if region == "" || region == "ZZ" || region == "001" {
		return "", false
	}
	return region, true
}

func parse(input, defaultRegion string) (*phonenumbers.PhoneNumber, bool) {
	if input == "" {
		return nil, false
	}
	if strings.HasPrefix(input, "00") {
		input = "+" + strings.TrimPrefix(input, "00")
	}

	region := strings.ToUpper(strings.TrimSpace(defaultRegion))
	if !strings.HasPrefix(input, "+") && region == "" {
		return nil, false
	}

	number, err := phonenumbers.Parse(input, region)
	if err != nil {
		return nil, false
	}
	if !phonenumbers.IsValidNumber(number) {
		return nil, false
	}
	return number, true
}
