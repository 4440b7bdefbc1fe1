package shapespace

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// maxExportUploads bounds concurrent uploads when no resource controller
// limits uploads.
const maxExportUploads = 4

// export mirrors published files from dir to the export store. Uploads run
// concurrently, bounded by the resource controller's upload slots.
func (p *Pipeline) export(ctx context.Context, dir string, files []string) (int, error) {
	store := p.opts.exportStore
	rc := p.opts.rc

	g, ctx := errgroup.WithContext(ctx)
	if rc == nil {
		g.SetLimit(maxExportUploads)
	}
	for _, rel := range files {
		g.Go(func() error {
			if err := rc.AcquireUpload(ctx); err != nil {
				return err
			}
			defer rc.ReleaseUpload()

			data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
			if err != nil {
				return err
			}
			name := path.Join(p.opts.exportPrefix, rel)
			if err := store.Put(ctx, name, data); err != nil {
				return fmt.Errorf("shapespace: export %s: %w", name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(files), nil
}
