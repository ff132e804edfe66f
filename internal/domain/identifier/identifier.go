// Package identifier validates and normalizes the French administrative
// identifiers every downstream merge is keyed on: SIRET (établissement),
// SIREN (unité légale) and UAI (établissement scolaire).
//
// All functions are pure. A value of type Siret, Siren or Uai only exists once
// validation succeeded.
package identifier

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	siretLength = 14
	sirenLength = 9

	// laPostePrefix is the SIREN of La Poste. Its établissements are numbered
	// past what Luhn allows and use a digit-sum modulo 5 rule instead.
	laPostePrefix = "356000000"

	uaiDigits = 7
)

// uaiAlphabet is the 23-letter checksum alphabet (no I, O, Q).
const uaiAlphabet = "ABCDEFGHJKLMNPRSTUVWXYZ"

var (
	reDigits = regexp.MustCompile(`^\d+$`)
	reUai    = regexp.MustCompile(`^(\d{1,7})([A-Z])$`)
)

// ─────────────────────────────────────────────────────────────────────────────
// Errors
// ─────────────────────────────────────────────────────────────────────────────

// Field names reported by ValidationError.
const (
	FieldSiret = "siret"
	FieldSiren = "siren"
	FieldUai   = "uai"
)

// ValidationError reports an identifier that failed validation. It carries the
// offending field and the raw input, and unwraps to an *errors.AppError so that
// errors.IsCode works on it.
type ValidationError struct {
	Field  string
	Raw    string
	Reason string
	cause  *errors.AppError
}

func newValidationError(field, raw, reason string, code errors.ErrorCode) *ValidationError {
	return &ValidationError{
		Field:  field,
		Raw:    raw,
		Reason: reason,
		cause:  errors.New(code, fmt.Sprintf("invalid %s", field)).WithDetailf("value=%q reason=%s", raw, reason),
	}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Raw, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.cause }

// ─────────────────────────────────────────────────────────────────────────────
// SIRET / SIREN
// ─────────────────────────────────────────────────────────────────────────────

// Siret is a validated, 14-digit, zero-padded SIRET.
type Siret string

func (s Siret) String() string { return string(s) }

// Siren returns the unité légale part of the SIRET.
func (s Siret) Siren() Siren { return Siren(s[:sirenLength]) }

// Siren is a validated 9-digit SIREN.
type Siren string

func (s Siren) String() string { return string(s) }

// ValidateSiret strips whitespace, requires 9 to 14 digits, left-pads to 14
// and checks the Luhn key. A La Poste SIRET failing Luhn is accepted when its
// digit sum is a multiple of 5.
func ValidateSiret(raw string) (Siret, error) {
	cleaned := stripSpaces(raw)
	if len(cleaned) < sirenLength || len(cleaned) > siretLength || !reDigits.MatchString(cleaned) {
		return "", newValidationError(FieldSiret, raw, "expected 9 to 14 digits", errors.ErrCodeInvalidSiret)
	}
	padded := leftPad(cleaned, siretLength)

	if luhnValid(padded) {
		return Siret(padded), nil
	}
	if strings.HasPrefix(padded, laPostePrefix) {
		if digitSum(padded)%5 == 0 {
			return Siret(padded), nil
		}
		return "", newValidationError(FieldSiret, raw, "la poste digit sum not divisible by 5", errors.ErrCodeInvalidSiret)
	}
	return "", newValidationError(FieldSiret, raw, "luhn checksum mismatch", errors.ErrCodeInvalidSiret)
}

// ValidateSiren requires exactly 9 digits with a valid Luhn key.
func ValidateSiren(raw string) (Siren, error) {
	cleaned := stripSpaces(raw)
	if len(cleaned) != sirenLength || !reDigits.MatchString(cleaned) {
		return "", newValidationError(FieldSiren, raw, "expected 9 digits", errors.ErrCodeInvalidSiren)
	}
	if !luhnValid(cleaned) {
		return "", newValidationError(FieldSiren, raw, "luhn checksum mismatch", errors.ErrCodeInvalidSiren)
	}
	return Siren(cleaned), nil
}

// IsValidSiret reports whether raw passes ValidateSiret.
func IsValidSiret(raw string) bool {
	_, err := ValidateSiret(raw)
	return err == nil
}

// ─────────────────────────────────────────────────────────────────────────────
// UAI
// ─────────────────────────────────────────────────────────────────────────────

// Uai is a validated UAI: 7 digits followed by its checksum letter.
type Uai string

func (u Uai) String() string { return string(u) }

// ValidateUai uppercases raw, left-pads the numeric part to 7 digits and
// requires the trailing letter to equal uaiAlphabet[n mod 23]. A wrong letter is
// reported, never corrected.
func ValidateUai(raw string) (Uai, error) {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	m := reUai.FindStringSubmatch(upper)
	if m == nil {
		return "", newValidationError(FieldUai, raw, "expected 1 to 7 digits followed by a letter", errors.ErrCodeInvalidUai)
	}
	numeric := leftPad(m[1], uaiDigits)
	n, err := strconv.Atoi(numeric)
	if err != nil {
		return "", newValidationError(FieldUai, raw, "numeric part unparsable", errors.ErrCodeInvalidUai)
	}
	want := uaiAlphabet[n%len(uaiAlphabet)]
	if m[2][0] != want {
		return "", newValidationError(FieldUai, raw, fmt.Sprintf("checksum letter %s, expected %c", m[2], want), errors.ErrCodeInvalidUai)
	}
	return Uai(numeric + m[2]), nil
}

// IsValidUai reports whether raw passes ValidateUai.
func IsValidUai(raw string) bool {
	_, err := ValidateUai(raw)
	return err == nil
}

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func leftPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// luhnValid runs the Luhn algorithm over an all-digit string.
func luhnValid(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func digitSum(digits string) int {
	sum := 0
	for i := 0; i < len(digits); i++ {
		sum += int(digits[i] - '0')
	}
	return sum
}
