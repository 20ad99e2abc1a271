package graph

import "context"

// Query selects relationship records by author and/or subject profile.
type Query struct {
	AuthorProfileIDs  []int64 `json:"authorProfileIds,omitempty"`
	SubjectProfileIDs []int64 `json:"subjectProfileIds,omitempty"`
	Limit             int     `json:"limit"`
	Offset            int     `json:"offset"`
}

// Source is the remote relationship API. Implementations return
// ErrNoDataFound for a 404 and *FetchError for other failures.
type Source interface {
	Relationships(ctx context.Context, kind Kind, q Query) ([]Record, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, kind Kind, q Query) ([]Record, error)

func (f SourceFunc) Relationships(ctx context.Context, kind Kind, q Query) ([]Record, error) {
	return f(ctx, kind, q)
}
