package formation

import (
	"math"
	"sort"
	"time"

	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

const daysPerYear = 365

// MatchSessions pairs session start and end dates.
//
// Both lists are sorted ascending first. Equal lengths pair positionally.
// Otherwise every element of the shorter list takes the counterpart in the
// longer list whose length in whole years deviates least from expectedYears;
// ties go to the earliest counterpart and counterparts ending before they
// start are never considered. An element without any valid counterpart fails
// with ErrCodeSessionUnmatched. An empty list on either side yields no
// session. capacite is attached to every session.
func MatchSessions(starts, ends []time.Time, expectedYears int, capacite *int) ([]Session, error) {
	if len(starts) == 0 || len(ends) == 0 {
		return []Session{}, nil
	}

	s := sortedCopy(starts)
	e := sortedCopy(ends)

	if len(s) == len(e) {
		out := make([]Session, len(s))
		for i := range s {
			out[i] = Session{Debut: s[i], Fin: e[i], Capacite: copyInt(capacite)}
		}
		return out, nil
	}

	shortIsStart := len(s) < len(e)
	short, long := e, s
	if shortIsStart {
		short, long = s, e
	}

	out := make([]Session, 0, len(short))
	for _, anchor := range short {
		best := -1
		bestDeviation := math.MaxInt
		for j, candidate := range long {
			debut, fin := candidate, anchor
			if shortIsStart {
				debut, fin = anchor, candidate
			}
			if fin.Before(debut) {
				continue
			}
			deviation := absInt(WholeYears(debut, fin) - expectedYears)
			if deviation < bestDeviation {
				best, bestDeviation = j, deviation
			}
		}
		if best < 0 {
			return nil, errors.New(errors.ErrCodeSessionUnmatched, "no valid session counterpart").
				WithDetailf("date=%s starts=%d ends=%d", anchor.Format(time.DateOnly), len(s), len(e))
		}

		sess := Session{Debut: long[best], Fin: anchor, Capacite: copyInt(capacite)}
		if shortIsStart {
			sess = Session{Debut: anchor, Fin: long[best], Capacite: copyInt(capacite)}
		}
		out = append(out, sess)
	}
	return out, nil
}

// WholeYears is the length of [debut, fin] rounded to the nearest year.
func WholeYears(debut, fin time.Time) int {
	days := fin.Sub(debut).Hours() / 24
	return int(math.Round(days / daysPerYear))
}

func sortedCopy(in []time.Time) []time.Time {
	out := make([]time.Time, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
