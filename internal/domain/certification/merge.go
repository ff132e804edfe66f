package certification

import (
	"time"

	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

// rncpReform is the date the RNCP registry was re-founded. Records first
// activated before it are flagged rncp_anterieur_2019.
var rncpReform = time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)

// Provenance names which source record owns a Certification field.
type Provenance int

const (
	// FromCfd fields always come from the CFD record.
	FromCfd Provenance = iota
	// FromRncp fields are nil when no RNCP record resolved.
	FromRncp
	// Combined fields read both sides independently, either may be nil.
	Combined
)

func (p Provenance) String() string {
	switch p {
	case FromCfd:
		return "cfd"
	case FromRncp:
		return "rncp"
	case Combined:
		return "combined"
	default:
		return "unknown"
	}
}

// FieldRule assigns one Certification field from the source records. Rules
// tagged FromCfd receive a non-nil cfd; rules tagged FromRncp receive a non-nil
// rncp and are skipped otherwise; Combined rules receive both as given.
type FieldRule struct {
	Field      string
	Provenance Provenance
	Apply      func(dst *Certification, cfd *CfdRecord, rncp *RncpRecord)
}

// MergeTable is the field precedence table of the merge. Its order is the
// order of application.
var MergeTable = []FieldRule{
	// ── identity ─────────────────────────────────────────────────────────────
	{"identifiant.cfd", FromCfd, func(d *Certification, c *CfdRecord, _ *RncpRecord) {
		d.Identifiant.Cfd = strPtr(c.Code)
	}},
	{"identifiant.rncp", FromRncp, func(d *Certification, _ *CfdRecord, r *RncpRecord) {
		d.Identifiant.Rncp = strPtr(r.Numero)
	}},
	{"identifiant.rncp_anterieur_2019", FromRncp, func(d *Certification, _ *CfdRecord, r *RncpRecord) {
		if r.DatePremiereActivation != nil {
			v := r.DatePremiereActivation.Before(rncpReform)
			d.Identifiant.RncpAnterieur2019 = &v
		}
	}},

	// ── intitulé ─────────────────────────────────────────────────────────────
	{"intitule.cfd", FromCfd, func(d *Certification, c *CfdRecord, _ *RncpRecord) {
		d.Intitule.Cfd = &IntituleCfd{Long: c.IntituleLong, Court: c.IntituleCourt}
	}},
	{"intitule.rncp", FromRncp, func(d *Certification, _ *CfdRecord, r *RncpRecord) {
		d.Intitule.Rncp = strPtr(r.Intitule)
	}},
	{"intitule.niveau", Combined, func(d *Certification, c *CfdRecord, r *RncpRecord) {
		d.Intitule.Niveau.Cfd = &NiveauCfd{
			Europeen:         c.NiveauEuropeen,
			Formation:        c.NiveauFormation,
			Grade:            c.Grade,
			Interministeriel: c.NiveauInterministeriel,
			Libelle:          c.NiveauLibelle,
			Sigle:            c.Sigle,
		}
		if r != nil {
			d.Intitule.Niveau.Rncp = &NiveauRncp{Europeen: r.NiveauEuropeen}
		}
	}},

	// ── période & continuité ─────────────────────────────────────────────────
	{"periode_validite", Combined, func(d *Certification, c *CfdRecord, r *RncpRecord) {
		cfdSide := &CfdPeriode{
			Ouverture:       c.Ouverture,
			Fermeture:       c.Fermeture,
			PremiereSession: c.PremiereSession,
			DerniereSession: c.DerniereSession,
		}
		var rncpSide *RncpPeriode
		if r != nil {
			rncpSide = &RncpPeriode{
				Actif:             r.Actif,
				Activation:        r.DateActivation,
				DebutParcours:     r.DateDebutParcours,
				FinEnregistrement: r.DateFinEnregistrement,
			}
		}
		d.PeriodeValidite = ComposePeriode(cfdSide, rncpSide)
	}},
	{"continuite", Combined, func(d *Certification, c *CfdRecord, r *RncpRecord) {
		d.Continuite = ComposeContinuite(c, r)
	}},

	// ── domaines ─────────────────────────────────────────────────────────────
	{"domaines.nsf", Combined, func(d *Certification, c *CfdRecord, r *RncpRecord) {
		d.Domaines.Nsf.Cfd = c.Nsf
		if r != nil {
			d.Domaines.Nsf.Rncp = nonNil(r.Nsf)
		}
	}},
	{"domaines.rome", FromRncp, func(d *Certification, _ *CfdRecord, r *RncpRecord) {
		d.Domaines.Rome.Rncp = nonNil(r.Rome)
	}},
	{"domaines.formacodes", FromRncp, func(d *Certification, _ *CfdRecord, r *RncpRecord) {
		d.Domaines.Formacodes.Rncp = nonNil(r.Formacodes)
	}},

	// ── type ─────────────────────────────────────────────────────────────────
	{"type.nature.cfd", FromCfd, func(d *Certification, c *CfdRecord, _ *RncpRecord) {
		if c.NatureCode != "" {
			d.Type.Nature.Cfd = &NatureCfd{Code: c.NatureCode, Libelle: c.NatureLibelle}
		}
	}},
	{"type.gestionnaire_diplome", FromCfd, func(d *Certification, c *CfdRecord, _ *RncpRecord) {
		d.Type.GestionnaireDiplome = c.GestionnaireDiplome
	}},
	{"type.enregistrement_rncp", FromRncp, func(d *Certification, _ *CfdRecord, r *RncpRecord) {
		d.Type.EnregistrementRncp = r.TypeEnregistrement
	}},
	{"type.voie_acces", FromRncp, func(d *Certification, _ *CfdRecord, r *RncpRecord) {
		v := r.VoieAcces
		d.Type.VoieAcces = &v
	}},
	{"type.certificateurs_rncp", FromRncp, func(d *Certification, _ *CfdRecord, r *RncpRecord) {
		d.Type.CertificateursRncp = nonNil(r.Certificateurs)
	}},

	// ── base légale, blocs, conventions ──────────────────────────────────────
	{"base_legale.cfd", FromCfd, func(d *Certification, c *CfdRecord, _ *RncpRecord) {
		d.BaseLegale.Cfd = &BaseLegaleCfd{Creation: c.ArreteCreation, Abrogation: c.ArreteAbrogation}
	}},
	{"blocs_competences.rncp", FromRncp, func(d *Certification, _ *CfdRecord, r *RncpRecord) {
		d.BlocsCompetences.Rncp = nonNil(r.Blocs)
	}},
	{"convention_collectives.rncp", FromRncp, func(d *Certification, _ *CfdRecord, r *RncpRecord) {
		d.ConventionCollectives.Rncp = nonNil(r.Conventions)
	}},
}

// Build walks MergeTable and returns the merged Certification. The CFD record
// is mandatory; rncp may be nil.
func Build(cfd *CfdRecord, rncp *RncpRecord) (*Certification, error) {
	if cfd == nil {
		return nil, errors.New(errors.ErrCodeCfdNotFound, "cfd record is required to build a certification")
	}

	out := &Certification{}
	for _, rule := range MergeTable {
		if rule.Provenance == FromRncp && rncp == nil {
			continue
		}
		rule.Apply(out, cfd, rncp)
	}
	return out, nil
}

// RncpFields returns the Field names of every FromRncp rule.
func RncpFields() []string {
	var out []string
	for _, rule := range MergeTable {
		if rule.Provenance == FromRncp {
			out = append(out, rule.Field)
		}
	}
	return out
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nonNil keeps "resolved but empty" distinct from "not resolved".
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
