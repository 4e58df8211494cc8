// Package xesi contains helpers for paged ESI endpoints.
package xesi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// MaxPages is the highest page count accepted from an X-Pages header.
const MaxPages = 1000

var ErrInvalidPageCount = errors.New("invalid page count")

// PageFunc fetches one page of an endpoint. Pages are numbered from 1.
type PageFunc[T any] func(ctx context.Context, page int) ([]T, *http.Response, error)

// FetchPages returns the items of all pages of an endpoint supporting the X-Pages header.
//
// The first page is fetched to learn the page count.
// Remaining pages are fetched concurrently with at most limit requests in flight.
// A negative limit means no limit. The first failing page cancels the others.
func FetchPages[T any](ctx context.Context, limit int, fetch PageFunc[T]) ([]T, error) {
	first, r, err := fetch(ctx, 1)
	if err != nil {
		return nil, err
	}
	pages, err := pageCount(r)
	if err != nil {
		return nil, err
	}
	if pages < 2 {
		return first, nil
	}
	results := make([][]T, pages)
	results[0] = first
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for p := 2; p <= pages; p++ {
		g.Go(func() error {
			items, _, err := fetch(ctx, p)
			if err != nil {
				return fmt.Errorf("page %d: %w", p, err)
			}
			results[p-1] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slices.Concat(results...), nil
}

func pageCount(r *http.Response) (int, error) {
	if r == nil {
		return 1, nil
	}
	s := r.Header.Get("X-Pages")
	if s == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > MaxPages {
		return 0, fmt.Errorf("X-Pages %q: %w", s, ErrInvalidPageCount)
	}
	return n, nil
}
