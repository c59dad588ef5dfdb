// Package phone normalizes dialable numbers to E.164.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "US"

// NormalizeE164 parses a phone number and formats it as E.164. Unlike a
// display-formatting helper, this is strict: suppression matching and
// dialing both key on the normalized form, so an unparseable or invalid
// number is an error, never passed through as-is.
func NormalizeE164(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", fmt.Errorf("empty phone number")
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return "", fmt.Errorf("parse phone number: %w", err)
	}
	if !phonenumbers.IsValidNumber(number) {
		return "", fmt.Errorf("invalid phone number")
	}
	return phonenumbers.Format(number, phonenumbers.E164), nil
}
