package plot

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tos-network/tos-miner/internal/config"
	"github.com/tos-network/tos-miner/internal/util"
)

// Registry holds the fleet of registered plot directories. Plot-file
// handles outlive all rounds until a configuration rescan; the registry is
// the single place that (re)discovers them.
type Registry struct {
	mu   sync.RWMutex
	dirs []*Dir
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Dirs returns a snapshot of the currently registered directories.
func (r *Registry) Dirs() []*Dir {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Dir, len(r.dirs))
	copy(out, r.dirs)
	return out
}

// TotalBytes returns the sum of all registered plot file sizes.
func (r *Registry) TotalBytes() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total int64
	for _, d := range r.dirs {
		total += d.TotalBytes()
	}
	return total
}

// AccountBytes returns the total registered plot bytes owned by one
// account. The target-deadline policy's fleet-size term uses TotalBytes,
// not this per-account figure.
func (r *Registry) AccountBytes(accountID uint64) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total int64
	for _, d := range r.dirs {
		for _, f := range d.Files {
			if f.AccountID == accountID {
				total += f.Size
			}
		}
	}
	return total
}

// Rescan re-walks every configured plot directory, replacing the
// registered set. A file that fails to parse or stat is logged and
// skipped; other files proceed.
func (r *Registry) Rescan(dirCfgs []config.PlotDirConfig) error {
	if len(dirCfgs) == 0 {
		return fmt.Errorf("no plot directories configured")
	}

	scanned := make([]*Dir, 0, len(dirCfgs))
	for _, dc := range dirCfgs {
		d := &Dir{
			Path:        dc.Path,
			Type:        dc.Type,
			RelatedDirs: dc.RelatedDirs,
		}

		entries, err := os.ReadDir(dc.Path)
		if err != nil {
			util.Warnf("skipping plot directory %q: %v", dc.Path, err)
			scanned = append(scanned, d)
			continue
		}

		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			info, err := e.Info()
			if err != nil {
				util.Warnf("skipping plot file %q: %v", e.Name(), err)
				continue
			}
			accountID, startNonce, nonces, err := parseFileName(e.Name())
			if err != nil {
				util.Debugf("skipping non-plot file %q: %v", e.Name(), err)
				continue
			}
			d.Files = append(d.Files, &File{
				Path:       filepath.Join(dc.Path, e.Name()),
				AccountID:  accountID,
				StartNonce: startNonce,
				Nonces:     nonces,
				Size:       info.Size(),
			})
		}

		scanned = append(scanned, d)
	}

	r.mu.Lock()
	r.dirs = scanned
	r.mu.Unlock()

	total := 0
	for _, d := range scanned {
		total += len(d.Files)
	}
	util.Infof("plot rescan complete: %d directories, %d files", len(scanned), total)
	return nil
}
