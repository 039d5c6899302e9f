package usecase

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"NewsDesk/internal/domain"
)

// RunRegions starts one batch per region and runs them concurrently. Every batch runs to
// completion even if another fails; the first error is returned alongside all results.
// An empty region list runs a single batch across all regions.
func (p *Pipeline) RunRegions(ctx context.Context, regions []string, limit int) (map[string][]domain.ItemResult, error) {
	if len(regions) == 0 {
		regions = []string{""}
	}

	var (
		mu  sync.Mutex
		out = make(map[string][]domain.ItemResult, len(regions))
		g   errgroup.Group
	)
	for _, region := range regions {
		g.Go(func() error {
			results, err := p.RunBatch(ctx, BatchRequest{Region: region, Limit: limit})
			mu.Lock()
			out[region] = results
			mu.Unlock()
			return err
		})
	}

	err := g.Wait()
	return out, err
}
