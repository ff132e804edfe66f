package certification

import "context"

// CatalogRepository is the store of already-reconciled certifications.
// Finders return (nil, nil) when nothing matches.
type CatalogRepository interface {
	// FindByIdentite matches the (cfd, rncp) pair exactly, nil matching NULL.
	FindByIdentite(ctx context.Context, cfd, rncp *string) (*Certification, error)
	Upsert(ctx context.Context, c *Certification) error
}

// SourceRepository reads the raw per-source records. Finders return (nil, nil)
// when the code is unknown.
type SourceRepository interface {
	FindCfd(ctx context.Context, code string) (*CfdRecord, error)
	FindRncp(ctx context.Context, code string) (*RncpRecord, error)
}
