package organisme

import "time"

// Synthesize builds an Organisme that is absent from the referential out of
// live company-registry data. The result is always statut "supprimé", not
// qualiopi and without numero d'activité. ul and commune may be nil.
func Synthesize(siret string, uai *string, etab *EtablissementRecord, ul *UniteLegaleRecord, commune *Commune) *Organisme {
	o := &Organisme{
		Identifiant: Identifiant{Siret: siret, Uai: uai},
		Etablissement: Etablissement{
			Siret:     siret,
			Ouvert:    etab.Ouvert,
			Enseigne:  etab.Enseigne,
			Creation:  orDefault(etab.DateCreation, EtablissementCreationInconnue),
			Fermeture: etab.DateFermeture,
		},
		UniteLegale: UniteLegale{
			Siren:    sirenOf(siret, etab),
			Creation: UniteLegaleCreationInconnue,
		},
		RenseignementsSpecifiques: RenseignementsSpecifiques{Qualiopi: false, NumeroActivite: nil},
		Statut:                    Statut{Referentiel: StatutSupprime},
		Contacts:                  []Contact{},
	}

	if ul != nil {
		o.UniteLegale.Actif = ul.Actif
		o.UniteLegale.RaisonSociale = ul.RaisonSociale
		o.UniteLegale.Creation = orDefault(ul.DateCreation, UniteLegaleCreationInconnue)
		o.UniteLegale.Cessation = ul.DateCessation
	}

	if commune != nil {
		o.Etablissement.Adresse = AdresseFromCommune(etab.AdresseLabel, etab.CodePostal, commune)
		if commune.Centre != nil {
			gp := *commune.Centre
			o.Etablissement.Geopoint = &gp
		}
	}

	return o
}

// AdresseFromCommune assembles an Adresse. An empty postal code falls back to
// the first postal code of the commune.
func AdresseFromCommune(label *string, codePostal string, c *Commune) *Adresse {
	if codePostal == "" && len(c.CodesPostaux) > 0 {
		codePostal = c.CodesPostaux[0]
	}
	return &Adresse{
		Label:       label,
		CodePostal:  codePostal,
		Commune:     CodeLibelle{Code: c.Code, Nom: c.Nom},
		Departement: c.Departement,
		Region:      c.Region,
		Academie:    c.Academie,
	}
}

func sirenOf(siret string, etab *EtablissementRecord) string {
	if etab.Siren != "" {
		return etab.Siren
	}
	if len(siret) >= 9 {
		return siret[:9]
	}
	return siret
}

func orDefault(t *time.Time, def time.Time) time.Time {
	if t == nil {
		return def
	}
	return *t
}
