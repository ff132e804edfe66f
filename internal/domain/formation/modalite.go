package formation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

// anneeInconnue is the catalogue sentinel for "cycle year unknown".
const anneeInconnue = "X"

// Modalite describes how the formation is delivered.
type Modalite struct {
	EntierementADistance bool    `json:"entierement_a_distance"`
	DureeIndicative      int     `json:"duree_indicative"`
	AnneeCycle           *int    `json:"annee_cycle"`
	Mef10                *string `json:"mef_10"`
}

// ExpectedDurationYears is the number of years a learner entering at
// AnneeCycle spends in the formation. An unknown cycle year counts as 1.
func (m Modalite) ExpectedDurationYears() int {
	annee := 1
	if m.AnneeCycle != nil {
		annee = *m.AnneeCycle
	}
	return m.DureeIndicative - annee + 1
}

// InvalidModaliteError reports a duree or annee that is not a positive
// integer. It unwraps to an ErrCodeInvalidModalite AppError.
type InvalidModaliteError struct {
	Field string
	Raw   string
	cause *errors.AppError
}

func newInvalidModalite(field, raw string) *InvalidModaliteError {
	return &InvalidModaliteError{
		Field: field,
		Raw:   raw,
		cause: errors.New(errors.ErrCodeInvalidModalite, "invalid "+field).WithDetailf("value=%q", raw),
	}
}

func (e *InvalidModaliteError) Error() string {
	return fmt.Sprintf("invalid modalite %s %q: expected a positive integer", e.Field, e.Raw)
}

func (e *InvalidModaliteError) Unwrap() error { return e.cause }

// ParseModalite parses the row's duree and annee. annee "X" maps to a nil
// AnneeCycle. Mef10 is kept only when the row lists exactly one code.
func ParseModalite(row SourceRow) (Modalite, error) {
	duree, ok := positiveInt(row.Duree)
	if !ok {
		return Modalite{}, newInvalidModalite("duree", row.Duree)
	}

	m := Modalite{
		EntierementADistance: row.EntierementADistance,
		DureeIndicative:      duree,
	}

	if annee := strings.TrimSpace(row.Annee); strings.ToUpper(annee) != anneeInconnue {
		n, ok := positiveInt(annee)
		if !ok {
			return Modalite{}, newInvalidModalite("annee", row.Annee)
		}
		m.AnneeCycle = &n
	}

	if len(row.Mefs10) == 1 {
		mef := row.Mefs10[0]
		m.Mef10 = &mef
	}

	return m, nil
}

func positiveInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
