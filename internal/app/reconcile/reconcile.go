// Package reconcile makes a persisted many-to-many relation match
// a freshly fetched authoritative member set.
package reconcile

import (
	"context"
	"fmt"

	"github.com/ErikKalkoken/go-set"

	"github.com/ErikKalkoken/evesync/internal/app"
)

// Strategy defines how a relation is brought in line with the authoritative members.
type Strategy uint

const (
	// FullReplace detaches all current members before attaching the full authoritative set.
	FullReplace Strategy = iota
	// Incremental detaches only removed members and attaches only added members.
	Incremental
)

func (s Strategy) String() string {
	switch s {
	case FullReplace:
		return "full_replace"
	case Incremental:
		return "incremental"
	}
	return "?"
}

// ParseStrategy returns the strategy for a name. An empty name returns the default strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "", "full_replace":
		return FullReplace, nil
	case "incremental":
		return Incremental, nil
	}
	return 0, fmt.Errorf("unknown reconcile strategy %q: %w", name, app.ErrInvalid)
}

// Relation is a persisted relation between an owner and members identified by K.
type Relation[K comparable] interface {
	ListMemberIDs(ctx context.Context) (set.Set[K], error)
	Detach(ctx context.Context, ids set.Set[K]) error
	Attach(ctx context.Context, ids set.Set[K]) error
}

// UpsertFunc creates or updates a member record by its natural key and returns that key.
type UpsertFunc[K comparable, M any] func(ctx context.Context, member M) (K, error)

// Reconciler reconciles a relation.
type Reconciler[K comparable, M any] struct {
	Relation Relation[K]
	Strategy Strategy
	Upsert   UpsertFunc[K, M]
}

// Result reports the changes made to a relation.
type Result[K comparable] struct {
	Detached set.Set[K]
	Attached set.Set[K]
	Members  set.Set[K] // members after reconciliation
}

// Reconcile makes the relation contain exactly the given members.
//
// Members are upserted one at a time. Detaching always completes before attaching starts.
// When an upsert or the attach fails after members were detached,
// a [*app.PartialReconciliationError] is returned.
// Member records are never deleted, only relation edges.
func (r Reconciler[K, M]) Reconcile(ctx context.Context, members []M) (Result[K], error) {
	var result Result[K]
	current, err := r.Relation.ListMemberIDs(ctx)
	if err != nil {
		return result, fmt.Errorf("reconcile: list members: %w", err)
	}
	var detach set.Set[K]
	if r.Strategy == FullReplace {
		detach = current.Clone()
		if err := r.detach(ctx, detach); err != nil {
			return result, err
		}
		result.Detached = detach
	}
	partial := func(err error) error {
		if detach.Size() == 0 {
			return err
		}
		return &app.PartialReconciliationError{Detached: detach.Size(), Err: err}
	}
	var incoming set.Set[K]
	for _, m := range members {
		id, err := r.Upsert(ctx, m)
		if err != nil {
			return result, partial(fmt.Errorf("reconcile: upsert member: %w", err))
		}
		incoming.Add(id)
	}
	attach := incoming
	if r.Strategy == Incremental {
		detach = set.Difference(current, incoming)
		if err := r.detach(ctx, detach); err != nil {
			return result, err
		}
		result.Detached = detach
		attach = set.Difference(incoming, current)
	}
	if attach.Size() > 0 {
		if err := r.Relation.Attach(ctx, attach); err != nil {
			return result, partial(fmt.Errorf("reconcile: attach %d members: %w", attach.Size(), err))
		}
	}
	result.Attached = attach
	result.Members = incoming
	return result, nil
}

func (r Reconciler[K, M]) detach(ctx context.Context, ids set.Set[K]) error {
	if ids.Size() == 0 {
		return nil
	}
	if err := r.Relation.Detach(ctx, ids); err != nil {
		return fmt.Errorf("reconcile: detach %d members: %w", ids.Size(), err)
	}
	return nil
}
