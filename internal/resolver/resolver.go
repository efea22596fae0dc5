// Package resolver classifies free-text check-in queries and resolves them
// against the person registry.
package resolver

import (
	"context"
	"errors"
	"strings"

	"asistencia/internal/backend"
)

// ErrEmptyQuery is returned for blank or whitespace-only queries; no
// request is issued for them.
var ErrEmptyQuery = errors.New("empty query")

// QueryKind tells how a query was classified.
type QueryKind int

const (
	// KindID is a digit-only query, filtered against the cedula field.
	KindID QueryKind = iota
	// KindName is any other non-blank query, filtered against the full name.
	KindName
)

// Classify applies the classification rule: a query consisting solely of
// digits is a national-ID filter, anything else is a name filter.
func Classify(query string) QueryKind {
	for _, r := range query {
		if r < '0' || r > '9' {
			return KindName
		}
	}
	return KindID
}

// Resolver performs person lookups against the registry.
type Resolver struct {
	client    *backend.Client
	pageLimit int
}

// New creates a resolver. pageLimit bounds each search; the check-in flow
// asks for an effectively unbounded page.
func New(client *backend.Client, pageLimit int) *Resolver {
	if pageLimit <= 0 {
		pageLimit = 100
	}
	return &Resolver{client: client, pageLimit: pageLimit}
}

// Resolve runs exactly one search for the query and returns the candidate
// records with the query's classification. Zero matches is a valid result
// and signals an unregistered person; it is not distinguishable from an
// empty registry except via a transport error.
func (r *Resolver) Resolve(ctx context.Context, query string) ([]backend.Person, QueryKind, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, KindName, ErrEmptyQuery
	}

	kind := Classify(q)
	filter := backend.SearchFilter{Limit: r.pageLimit}
	if kind == KindID {
		filter.Cedula = q
	} else {
		filter.FullName = q
	}

	page, err := r.client.SearchPersons(ctx, filter)
	if err != nil {
		return nil, kind, err
	}
	return page.Data, kind, nil
}

// Prefill builds the registration prefill for an unmatched query, tagged by
// the same classification rule.
func Prefill(query string) map[string]string {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil
	}
	if Classify(q) == KindID {
		return map[string]string{"cedula": q}
	}
	return map[string]string{"nombre": q}
}
