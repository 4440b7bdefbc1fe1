package shapespace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hupe1980/shapespace/codec"
	"github.com/hupe1980/shapespace/internal/fs"
	"github.com/hupe1980/shapespace/internal/hash"
	"github.com/hupe1980/shapespace/latent"
)

// Run kinds.
const (
	KindDistance = "distance"
	KindModels   = "models"
	KindImport   = "import"
)

// Report summarizes one finished run.
type Report struct {
	RunID    string        `json:"runId"`
	Kind     string        `json:"kind"`
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished"`
	Samples  int           `json:"samples"`
	Dim      int           `json:"dim,omitempty"`
	Metrics  []string      `json:"metrics,omitempty"`
	Files    []FileInfo    `json:"files"`
	Models   []ModelInfo   `json:"models,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
	Elapsed  time.Duration `json:"elapsedNanos"`

	// Exported is the number of files mirrored to the export store.
	Exported int `json:"-"`
}

// FileInfo describes one published file.
type FileInfo struct {
	Path   string `json:"path"`
	Bytes  int64  `json:"bytes"`
	CRC32C uint32 `json:"crc32c"`
}

// ModelInfo describes one latent model of a models run.
type ModelInfo struct {
	Level   int `json:"persistenceLevel"`
	Crystal int `json:"crystal"`
	Members int `json:"members"`
	K       int `json:"k"`
}

// ReportName returns the file name of the report of a run kind.
func ReportName(kind string) string { return kind + "_report.json" }

func newReport(runID, kind string, started time.Time) *Report {
	return &Report{RunID: runID, Kind: kind, Started: started.UTC()}
}

func (r *Report) addModels(set *latent.Set) {
	for _, level := range set.Levels() {
		for _, m := range set.Models(level) {
			r.Models = append(r.Models, ModelInfo{Level: m.Level, Crystal: m.Crystal, Members: len(m.Members), K: m.K()})
		}
	}
	for _, w := range set.Warnings() {
		r.addWarning(w)
	}
}

func (r *Report) addWarning(w latent.DegenerateModelWarning) {
	r.Warnings = append(r.Warnings, w.String())
}

// Degenerate returns the number of models with fewer components than
// requested.
func (r *Report) Degenerate() int { return len(r.Warnings) }

// checksum lists the staged files with their sizes and CRC32C sums.
func checksum(st *fs.Staging) ([]FileInfo, error) {
	rels, err := st.Files()
	if err != nil {
		return nil, err
	}
	out := make([]FileInfo, 0, len(rels))
	for _, rel := range rels {
		f, err := fs.Open(st.FS(), filepath.Join(st.Dir(), filepath.FromSlash(rel)))
		if err != nil {
			return nil, err
		}
		h := hash.NewCRC32C()
		n, err := io.Copy(h, f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("shapespace: checksum %s: %w", rel, err)
		}
		out = append(out, FileInfo{Path: rel, Bytes: n, CRC32C: h.Sum32()})
	}
	return out, nil
}

func writeReport(st *fs.Staging, r *Report) error {
	p, err := st.Path(ReportName(r.Kind))
	if err != nil {
		return err
	}
	data, err := codec.Document(codec.Default, r)
	if err != nil {
		return err
	}
	return fs.WriteFile(st.FS(), p, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// ReadReport reads a run report.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := codec.Default.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &r, nil
}
