// Package phone normalizes heterogeneous phone inputs into canonical E.164
// form and converts canonical numbers into the messaging vendor's bare-digit
// format. Canonical form is the only representation ever persisted or used
// for equality comparison; anything that cannot be validated as a real number
// for some attempted region is an error, never a best-effort guess.
package phone

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"github.com/rotisserie/eris"
)

// DefaultRegion is the business's home country.
const DefaultRegion = "BR"

// homeCountryCode is the dialing code for DefaultRegion, used to repair
// inputs that arrive with a doubled country code ("5555119...").
const homeCountryCode = "55"

// DefaultRegions is the ordered list of regions attempted during parsing,
// covering the business's customer base. The home region is tried first.
var DefaultRegions = []string{DefaultRegion, "PT", "US"}

// canonicalRe matches the E.164 shape: + followed by 1-15 digits.
var canonicalRe = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// ErrUnparseable indicates the input could not be parsed into a valid phone
// number under any attempted region.
var ErrUnparseable = eris.New("phone: unparseable input")

// IsCanonical reports whether s is already a valid canonical E.164 string.
// Shape alone is not enough; the number must validate for its country.
func IsCanonical(s string) bool {
	if !canonicalRe.MatchString(s) {
		return false
	}
	parsed, err := phonenumbers.Parse(s, "")
	return err == nil && phonenumbers.IsValidNumber(parsed)
}

// Normalize converts a raw phone string into canonical E.164 form. Regions
// are attempted in order; when none are given, DefaultRegions is used.
// Normalization is idempotent: a valid canonical input is returned unchanged.
func Normalize(raw string, regions ...string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", eris.Wrap(ErrUnparseable, "phone: empty input")
	}

	if IsCanonical(s) {
		return s, nil
	}

	digits := Digits(s)
	if digits == "" {
		return "", eris.Wrapf(ErrUnparseable, "phone: no digits in %q", raw)
	}
	if len(regions) == 0 {
		regions = DefaultRegions
	}

	cleaned := digits
	if strings.HasPrefix(s, "+") {
		cleaned = "+" + digits
	}

	for _, region := range regions {
		parsed, err := phonenumbers.Parse(cleaned, region)
		if err != nil {
			continue
		}
		if phonenumbers.IsValidNumber(parsed) {
			return phonenumbers.Format(parsed, phonenumbers.E164), nil
		}
	}

	// Inputs that carry their country code without the + prefix, the usual
	// shape of vendor webhook payloads ("5511998457676").
	if !strings.HasPrefix(cleaned, "+") {
		if canonical, ok := validate("+" + digits); ok {
			return canonical, nil
		}

		// Doubled home country code, a known historical import defect.
		if strings.HasPrefix(digits, homeCountryCode+homeCountryCode) {
			if canonical, ok := validate("+" + digits[len(homeCountryCode):]); ok {
				return canonical, nil
			}
		}
	}

	return "", eris.Wrapf(ErrUnparseable, "phone: %q", raw)
}

// validate parses a +-prefixed candidate and returns its E.164 form if valid.
func validate(candidate string) (string, bool) {
	parsed, err := phonenumbers.Parse(candidate, "")
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return "", false
	}
	return phonenumbers.Format(parsed, phonenumbers.E164), true
}

// Digits strips every non-digit character from s.
func Digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// LastDigits returns the trailing n digits of s, or "" when s carries fewer
// than n digits. Suffix-match strategies must not run on short fragments.
func LastDigits(s string, n int) string {
	d := Digits(s)
	if len(d) < n {
		return ""
	}
	return d[len(d)-n:]
}
