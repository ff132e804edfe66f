package certification

import (
	"sort"
	"time"

	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

// PeriodeValidite is the validity window of a Certification. Debut and Fin are
// derived from the per-side periods by ComposePeriode and never set directly.
type PeriodeValidite struct {
	Debut *time.Time   `json:"debut"`
	Fin   *time.Time   `json:"fin"`
	Cfd   *CfdPeriode  `json:"cfd"`
	Rncp  *RncpPeriode `json:"rncp"`
}

// CfdPeriode is the BCN side of the validity window.
type CfdPeriode struct {
	Ouverture       *time.Time `json:"ouverture"`
	Fermeture       *time.Time `json:"fermeture"`
	PremiereSession *string    `json:"premiere_session"`
	DerniereSession *string    `json:"derniere_session"`
}

// RncpPeriode is the France Compétences side of the validity window.
type RncpPeriode struct {
	Actif             bool       `json:"actif"`
	Activation        *time.Time `json:"activation"`
	DebutParcours     *time.Time `json:"debut_parcours"`
	FinEnregistrement *time.Time `json:"fin_enregistrement"`
}

// ComposePeriode derives Debut as the latest opening and Fin as the earliest
// closing over the sides present. A missing side, or a missing date on a
// present side, does not constrain the boundary. Fin < Debut is kept as is;
// Check reports it.
func ComposePeriode(cfd *CfdPeriode, rncp *RncpPeriode) PeriodeValidite {
	p := PeriodeValidite{Cfd: cfd, Rncp: rncp}

	var opens, closes []*time.Time
	if cfd != nil {
		opens = append(opens, cfd.Ouverture)
		closes = append(closes, cfd.Fermeture)
	}
	if rncp != nil {
		opens = append(opens, rncp.Activation)
		closes = append(closes, rncp.FinEnregistrement)
	}

	p.Debut = latest(opens...)
	p.Fin = earliest(closes...)
	return p
}

// Check returns ErrCodePeriodeIncoherente when both boundaries exist and Fin
// precedes Debut.
func (p PeriodeValidite) Check() error {
	if p.Debut != nil && p.Fin != nil && p.Fin.Before(*p.Debut) {
		return errors.New(errors.ErrCodePeriodeIncoherente, "validity period ends before it starts").
			WithDetailf("debut=%s fin=%s", p.Debut.Format(time.DateOnly), p.Fin.Format(time.DateOnly))
	}
	return nil
}

// Actif reports whether at falls inside the window. Missing boundaries are
// open-ended.
func (p PeriodeValidite) Actif(at time.Time) bool {
	if p.Debut != nil && at.Before(*p.Debut) {
		return false
	}
	if p.Fin != nil && at.After(*p.Fin) {
		return false
	}
	return true
}

func latest(ts ...*time.Time) *time.Time {
	var out *time.Time
	for _, t := range ts {
		if t != nil && (out == nil || t.After(*out)) {
			out = t
		}
	}
	return copyTime(out)
}

func earliest(ts ...*time.Time) *time.Time {
	var out *time.Time
	for _, t := range ts {
		if t != nil && (out == nil || t.Before(*out)) {
			out = t
		}
	}
	return copyTime(out)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// ─────────────────────────────────────────────────────────────────────────────
// Continuité
// ─────────────────────────────────────────────────────────────────────────────

// Continuite traces predecessor and successor codes across reforms. The two
// chains are kept independent.
type Continuite struct {
	Cfd  []ContinuiteCfd  `json:"cfd"`
	Rncp []ContinuiteRncp `json:"rncp"`
}

type ContinuiteCfd struct {
	Code      string     `json:"code"`
	Ouverture *time.Time `json:"ouverture"`
	Fermeture *time.Time `json:"fermeture"`
	Courant   bool       `json:"courant"`
}

type ContinuiteRncp struct {
	Code              string     `json:"code"`
	Activation        *time.Time `json:"activation"`
	FinEnregistrement *time.Time `json:"fin_enregistrement"`
	Actif             bool       `json:"actif"`
	Courant           bool       `json:"courant"`
}

// ComposeContinuite builds both chains. Each chain contains the current code
// with Courant set, and every other entry with Courant cleared, ordered by
// opening date. A side whose current code is nil yields a nil chain.
func ComposeContinuite(cfd *CfdRecord, rncp *RncpRecord) Continuite {
	var c Continuite

	if cfd != nil {
		chain := make([]ContinuiteCfd, 0, len(cfd.Continuite)+1)
		seen := false
		for _, e := range cfd.Continuite {
			e.Courant = e.Code == cfd.Code
			if e.Courant {
				if seen {
					continue
				}
				seen = true
			}
			chain = append(chain, e)
		}
		if !seen {
			chain = append(chain, ContinuiteCfd{Code: cfd.Code, Ouverture: cfd.Ouverture, Fermeture: cfd.Fermeture, Courant: true})
		}
		sort.SliceStable(chain, func(i, j int) bool {
			return timeLess(chain[i].Ouverture, chain[j].Ouverture)
		})
		c.Cfd = chain
	}

	if rncp != nil {
		chain := make([]ContinuiteRncp, 0, len(rncp.Continuite)+1)
		seen := false
		for _, e := range rncp.Continuite {
			e.Courant = e.Code == rncp.Numero
			if e.Courant {
				if seen {
					continue
				}
				seen = true
			}
			chain = append(chain, e)
		}
		if !seen {
			chain = append(chain, ContinuiteRncp{
				Code:              rncp.Numero,
				Activation:        rncp.DateActivation,
				FinEnregistrement: rncp.DateFinEnregistrement,
				Actif:             rncp.Actif,
				Courant:           true,
			})
		}
		sort.SliceStable(chain, func(i, j int) bool {
			return timeLess(chain[i].Activation, chain[j].Activation)
		})
		c.Rncp = chain
	}

	return c
}

// timeLess orders nil dates last.
func timeLess(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.Before(*b)
	}
}
