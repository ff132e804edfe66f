// Package certification holds the canonical Certification entity, the two
// per-source records it is reconciled from (the CFD diploma record of the BCN
// nomenclature and the RNCP qualification record of France Compétences), the
// validity period composition and the field-by-field merge table.
package certification

import (
	"strings"
	"time"
	"unicode"
)

// RncpNonRenseigne is the sentinel upstream datasets use for "no RNCP code".
const RncpNonRenseigne = "RNCPNR"

// ─────────────────────────────────────────────────────────────────────────────
// Canonical entity
// ─────────────────────────────────────────────────────────────────────────────

// Certification is the reconciled view of one (cfd, rncp) identity pair. It is
// built once per pair and never patched afterwards. Pointer and slice fields
// are nil when the source that owns them did not resolve.
type Certification struct {
	Identifiant           Identifiant           `json:"identifiant"`
	Intitule              Intitule              `json:"intitule"`
	PeriodeValidite       PeriodeValidite       `json:"periode_validite"`
	Continuite            Continuite            `json:"continuite"`
	Domaines              Domaines              `json:"domaines"`
	Type                  Type                  `json:"type"`
	BaseLegale            BaseLegale            `json:"base_legale"`
	BlocsCompetences      BlocsCompetences      `json:"blocs_competences"`
	ConventionCollectives ConventionCollectives `json:"convention_collectives"`
}

// Identifiant is the identity pair of a Certification.
type Identifiant struct {
	Cfd               *string `json:"cfd"`
	Rncp              *string `json:"rncp"`
	RncpAnterieur2019 *bool   `json:"rncp_anterieur_2019"`
}

// Key is the memo key of the identity pair: "<rncp>|<cfd>", empty for nil.
func (i Identifiant) Key() string {
	return IdentityKey(i.Cfd, i.Rncp)
}

// IdentityKey builds the memo key of a (cfd, rncp) pair.
func IdentityKey(cfd, rncp *string) string {
	return deref(rncp) + "|" + deref(cfd)
}

type Intitule struct {
	Cfd    *IntituleCfd `json:"cfd"`
	Rncp   *string      `json:"rncp"`
	Niveau Niveau       `json:"niveau"`
}

type IntituleCfd struct {
	Long  string `json:"long"`
	Court string `json:"court"`
}

// Niveau combines the CFD formation level and the RNCP european level.
type Niveau struct {
	Cfd  *NiveauCfd  `json:"cfd"`
	Rncp *NiveauRncp `json:"rncp"`
}

type NiveauCfd struct {
	Europeen         *string `json:"europeen"`
	Formation        string  `json:"formation"`
	Grade            *string `json:"grade"`
	Interministeriel string  `json:"interministeriel"`
	Libelle          *string `json:"libelle"`
	Sigle            string  `json:"sigle"`
}

type NiveauRncp struct {
	Europeen *string `json:"europeen"`
}

type Domaines struct {
	Formacodes Formacodes `json:"formacodes"`
	Nsf        NsfDomaine `json:"nsf"`
	Rome       Romes      `json:"rome"`
}

type Formacodes struct {
	Rncp []Formacode `json:"rncp"`
}

type Formacode struct {
	Code     string `json:"code"`
	Intitule string `json:"intitule"`
}

type NsfDomaine struct {
	Cfd  *Nsf  `json:"cfd"`
	Rncp []Nsf `json:"rncp"`
}

type Nsf struct {
	Code     string  `json:"code"`
	Intitule *string `json:"intitule"`
}

type Romes struct {
	Rncp []Rome `json:"rncp"`
}

type Rome struct {
	Code     string `json:"code"`
	Intitule string `json:"intitule"`
}

type Type struct {
	Nature              Nature          `json:"nature"`
	GestionnaireDiplome *string         `json:"gestionnaire_diplome"`
	EnregistrementRncp  *string         `json:"enregistrement_rncp"`
	VoieAcces           *VoieAcces      `json:"voie_acces"`
	CertificateursRncp  []Certificateur `json:"certificateurs_rncp"`
}

type Nature struct {
	Cfd *NatureCfd `json:"cfd"`
}

type NatureCfd struct {
	Code    string  `json:"code"`
	Libelle *string `json:"libelle"`
}

// VoieAcces lists the access routes declared on the RNCP record.
type VoieAcces struct {
	Apprentissage        bool `json:"apprentissage"`
	Experience           bool `json:"experience"`
	Candidature          bool `json:"candidature_individuelle"`
	Contrat              bool `json:"contrat_professionnalisation"`
	FormationContinue    bool `json:"formation_continue"`
	FormationStatutEleve bool `json:"formation_statut_eleve"`
}

type Certificateur struct {
	Siret *string `json:"siret"`
	Nom   string  `json:"nom"`
}

type BaseLegale struct {
	Cfd *BaseLegaleCfd `json:"cfd"`
}

type BaseLegaleCfd struct {
	Creation   *time.Time `json:"creation"`
	Abrogation *time.Time `json:"abrogation"`
}

type BlocsCompetences struct {
	Rncp []BlocCompetence `json:"rncp"`
}

type BlocCompetence struct {
	Code     string `json:"code"`
	Intitule string `json:"intitule"`
}

type ConventionCollectives struct {
	Rncp []ConventionCollective `json:"rncp"`
}

type ConventionCollective struct {
	Numero   string `json:"numero"`
	Intitule string `json:"intitule"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Source records
// ─────────────────────────────────────────────────────────────────────────────

// CfdRecord is the BCN diploma record, already parsed from the nomenclature.
type CfdRecord struct {
	Code                   string
	IntituleLong           string
	IntituleCourt          string
	NiveauFormation        string
	NiveauInterministeriel string
	NiveauLibelle          *string
	NiveauEuropeen         *string
	Grade                  *string
	Sigle                  string
	Ouverture              *time.Time
	Fermeture              *time.Time
	PremiereSession        *string
	DerniereSession        *string
	NatureCode             string
	NatureLibelle          *string
	GestionnaireDiplome    *string
	Nsf                    *Nsf
	ArreteCreation         *time.Time
	ArreteAbrogation       *time.Time
	Continuite             []ContinuiteCfd
}

// RncpRecord is the France Compétences qualification record.
type RncpRecord struct {
	Numero                 string
	Intitule               string
	NiveauEuropeen         *string
	Actif                  bool
	DateActivation         *time.Time
	DateFinEnregistrement  *time.Time
	DateDebutParcours      *time.Time
	DatePremiereActivation *time.Time
	TypeEnregistrement     *string
	Nsf                    []Nsf
	Rome                   []Rome
	Formacodes             []Formacode
	Blocs                  []BlocCompetence
	Conventions            []ConventionCollective
	VoieAcces              VoieAcces
	Certificateurs         []Certificateur
	Continuite             []ContinuiteRncp
}

// ─────────────────────────────────────────────────────────────────────────────
// Code normalization
// ─────────────────────────────────────────────────────────────────────────────

// NormalizeRncp upper-cases and trims an RNCP code and prefixes bare numbers
// with "RNCP". The empty string and the RNCPNR sentinel mean "no RNCP side"
// and yield nil.
func NormalizeRncp(raw string) *string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" || code == RncpNonRenseigne {
		return nil
	}
	if isDigits(code) {
		code = "RNCP" + code
	}
	return &code
}

// NormalizeCfd trims a CFD code. Empty yields nil.
func NormalizeCfd(raw string) *string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return nil
	}
	return &code
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
