package records

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Loader abstracts record loading so callers can put a cache in front of the
// filesystem.
type Loader interface {
	Records(path string) ([]Record, error)
	Collection(path string) (*Collection, error)
}

// FileLoader reads straight from disk.
type FileLoader struct{}

// Records implements Loader.
func (FileLoader) Records(path string) ([]Record, error) { return LoadFile(path) }

// Collection implements Loader.
func (FileLoader) Collection(path string) (*Collection, error) { return LoadCollection(path) }

// LoadCollections loads every path in parallel (bounded by jobs, 0 = GOMAXPROCS)
// and returns the collections in input order. The first failure cancels the
// remaining loads.
func LoadCollections(ctx context.Context, l Loader, paths []string, jobs int) ([]*Collection, error) {
	out := make([]*Collection, len(paths))
	err := fanOut(ctx, len(paths), jobs, func(i int) error {
		c, err := l.Collection(paths[i])
		if err != nil {
			return err
		}
		out[i] = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LoadAll loads record files in parallel, preserving input order.
func LoadAll(ctx context.Context, l Loader, paths []string, jobs int) ([][]Record, error) {
	out := make([][]Record, len(paths))
	err := fanOut(ctx, len(paths), jobs, func(i int) error {
		recs, err := l.Records(paths[i])
		if err != nil {
			return err
		}
		out[i] = recs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func fanOut(ctx context.Context, n, jobs int, fn func(i int) error) error {
	if n == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, n))
	for i := range n {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			return fn(i)
		})
	}
	return g.Wait()
}

// LoadFiles reads record files from disk in parallel, preserving input order.
func LoadFiles(ctx context.Context, paths []string, jobs int) ([][]Record, error) {
	return LoadAll(ctx, FileLoader{}, paths, jobs)
}
