// Package phone normalises Belgian and international numbers with
// libphonenumber rules.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion applies to numbers without a country prefix.
const DefaultRegion = "BE"

func NormalizeE164(input string) string {
	return NormalizeE164Region(input, DefaultRegion)
}

// NormalizeE164Region formats input as E.164. Unparseable or invalid
// numbers come back trimmed but otherwise untouched.
func NormalizeE164Region(input, region string) string {
	raw := strings.TrimSpace(input)
	n, ok := parse(raw, region)
	if !ok {
		return raw
	}
	return phonenumbers.Format(n, phonenumbers.E164)
}

// IsMobile reports whether input is a valid number that can receive SMS.
func IsMobile(input string) bool {
	n, ok := parse(strings.TrimSpace(input), DefaultRegion)
	if !ok {
		return false
	}
	t := phonenumbers.GetNumberType(n)
	return t == phonenumbers.MOBILE || t == phonenumbers.FIXED_LINE_OR_MOBILE
}

func parse(raw, region string) (*phonenumbers.PhoneNumber, bool) {
	if raw == "" {
		return nil, false
	}
	n, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(n) {
		return nil, false
	}
	return n, true
}
