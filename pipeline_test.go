package shapespace

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hupe1980/shapespace/blobstore"
	"github.com/hupe1980/shapespace/distance"
	ifs "github.com/hupe1980/shapespace/internal/fs"
	"github.com/hupe1980/shapespace/latent"
	"github.com/hupe1980/shapespace/matrix"
	"github.com/hupe1980/shapespace/pairwise"
	"github.com/hupe1980/shapespace/partition"
	"github.com/hupe1980/shapespace/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var square = [][]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}}

func newPipeline(t *testing.T, src *testutil.MemorySource, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(src, src, append([]Option{WithWorkers(2), WithBlocks(2)}, opts...)...)
	require.NoError(t, err)
	return p
}

// regularFiles lists the files below root relative to it.
func regularFiles(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(root, path)
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestComputeDistances_FourSampleL1(t *testing.T) {
	src := testutil.NewMemorySource(square, 1)
	out := filepath.Join(t.TempDir(), "out")
	p := newPipeline(t, src, WithRunID("run-1"))

	report, err := p.ComputeDistances(context.Background(), []string{"L1", "l1"}, out)
	require.NoError(t, err)
	assert.Equal(t, []string{"l1"}, report.Metrics)
	assert.Equal(t, 4, report.Samples)

	dims, err := os.ReadFile(filepath.Join(out, "l1_distance.bin.dims"))
	require.NoError(t, err)
	assert.Equal(t, "4 4 float32", string(dims))

	got, dtype, err := matrix.ReadFile(filepath.Join(out, "l1_distance.bin"), matrix.RowMajor)
	require.NoError(t, err)
	assert.Equal(t, matrix.Float32, dtype)
	want := matrix.NewFromRows([][]float64{
		{0, 1, 1, 2},
		{1, 0, 2, 1},
		{1, 2, 0, 1},
		{2, 1, 1, 0},
	})
	assert.True(t, want.Equal(got))

	saved, err := ReadReport(filepath.Join(out, ReportName(KindDistance)))
	require.NoError(t, err)
	assert.Equal(t, "run-1", saved.RunID)
	require.Len(t, saved.Files, 2)
	assert.Equal(t, "l1_distance.bin", saved.Files[0].Path)
	assert.Equal(t, int64(64), saved.Files[0].Bytes)
	assert.Equal(t, "l1_distance.bin.dims", saved.Files[1].Path)

	assert.ElementsMatch(t, []string{"l1_distance.bin", "l1_distance.bin.dims", "distance_report.json"}, regularFiles(t, out))
}

func TestComputeDistances_BlockingIndependence(t *testing.T) {
	payloads := testutil.Float32Exact(testutil.NewRNG(7).Gaussian(17, 6))
	fn, err := distance.New(distance.Euclidean)
	require.NoError(t, err)
	want := testutil.BruteForceDistances(payloads, fn)

	for _, blocks := range []int{1, 3, 17} {
		src := testutil.NewMemorySource(payloads, 1)
		out := filepath.Join(t.TempDir(), "out")
		p := newPipeline(t, src, WithBlocks(blocks), WithDType(matrix.Float64), WithReport(false))

		_, err := p.ComputeDistances(context.Background(), []string{"euclidean"}, out)
		require.NoError(t, err)

		got, _, err := matrix.ReadFile(filepath.Join(out, "euclidean_distance.bin"), matrix.RowMajor)
		require.NoError(t, err)
		require.NoError(t, pairwise.Validate(got))
		for i := range want {
			assert.InDeltaSlice(t, want[i], got.Row(i), 1e-12, "blocks=%d row=%d", blocks, i)
		}
	}
}

func TestComputeDistances_UnsupportedMetricBeforeAnyLoad(t *testing.T) {
	src := testutil.NewMemorySource(square, 1)
	out := filepath.Join(t.TempDir(), "out")
	p := newPipeline(t, src)

	_, err := p.ComputeDistances(context.Background(), []string{"l1", "mahalanobis"}, out)
	var unsupported *UnsupportedMetricError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "mahalanobis", unsupported.Name)
	assert.Zero(t, src.Loads())
	assert.NoDirExists(t, out)

	_, err = p.ComputeDistances(context.Background(), nil, out)
	assert.ErrorIs(t, err, ErrNoMetrics)
}

func TestComputeDistances_LoadFailureWritesNothing(t *testing.T) {
	src := testutil.NewMemorySource(testutil.NewRNG(3).Uniform(9, 4), 1)
	src.Fail(6, nil)
	root := t.TempDir()
	mc := &BasicMetricsCollector{}
	p := newPipeline(t, src, WithMetricsCollector(mc))

	_, err := p.ComputeDistances(context.Background(), []string{"cityblock", "euclidean"}, filepath.Join(root, "out"))
	require.ErrorIs(t, err, testutil.ErrInjected)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, 6, loadErr.ID)

	assert.Empty(t, regularFiles(t, root), "neither outputs nor staging survive")
	stats := mc.GetStats()
	assert.Equal(t, int64(1), stats.RunErrors)
	assert.Positive(t, stats.LoadErrors)
}

func TestComputeDistances_ShapeMismatch(t *testing.T) {
	payloads := testutil.NewRNG(4).Uniform(5, 3)
	payloads[3] = []float64{1, 2}
	src := testutil.NewMemorySource(payloads, 1)
	root := t.TempDir()

	_, err := newPipeline(t, src).ComputeDistances(context.Background(), []string{"l2"}, filepath.Join(root, "out"))
	var mismatch *ShapeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 4, mismatch.ID)
	assert.Empty(t, regularFiles(t, root))
}

func TestComputeDistances_PublishFailureRollsBack(t *testing.T) {
	src := testutil.NewMemorySource(square, 1)
	root := t.TempDir()
	out := filepath.Join(root, "out")

	ffs := ifs.NewFaultyFS(nil)
	ffs.AddRule(filepath.Join("out", "l1_distance.bin"), ifs.Fault{FailOnRename: true})
	p := newPipeline(t, src, withFileSystem(ffs))

	_, err := p.ComputeDistances(context.Background(), []string{"euclidean", "l1"}, out)
	require.ErrorIs(t, err, ifs.ErrInjected)
	assert.Empty(t, regularFiles(t, root))
}

func TestComputeDistances_FailedRerunKeepsPrevious(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "out")
	metrics := []string{"euclidean", "l1"}

	_, err := newPipeline(t, testutil.NewMemorySource(square, 1)).ComputeDistances(context.Background(), metrics, out)
	require.NoError(t, err)

	before := map[string][]byte{}
	for _, rel := range regularFiles(t, root) {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		require.NoError(t, err)
		before[rel] = data
	}
	require.Contains(t, before, "out/euclidean_distance.bin")

	other := testutil.NewRNG(9).Uniform(len(square), 3)
	ffs := ifs.NewFaultyFS(nil)
	ffs.AddRule(filepath.Join("out", "l1_distance.bin"), ifs.Fault{FailOnRename: true, Limit: 1})
	p := newPipeline(t, testutil.NewMemorySource(other, 1), withFileSystem(ffs))

	_, err = p.ComputeDistances(context.Background(), metrics, out)
	require.ErrorIs(t, err, ifs.ErrInjected)

	after := regularFiles(t, root)
	assert.ElementsMatch(t, mapKeys(before), after)
	for _, rel := range after {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		require.NoError(t, err)
		assert.Equal(t, before[rel], data, rel)
	}
}

func mapKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func TestComputeDistances_PCA(t *testing.T) {
	src := testutil.NewMemorySource(square, 1)
	out := filepath.Join(t.TempDir(), "out")
	p := newPipeline(t, src, WithDType(matrix.Float64))

	report, err := p.ComputeDistances(context.Background(), []string{"pca"}, out)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Dim)
	assert.Empty(t, report.Warnings)

	got, _, err := matrix.ReadFile(filepath.Join(out, "pca_distance.bin"), matrix.RowMajor)
	require.NoError(t, err)

	// Two components keep all variance of the square, so coefficient
	// distances equal the original Euclidean distances.
	fn, err := distance.New(distance.Euclidean)
	require.NoError(t, err)
	want := testutil.BruteForceDistances(square, fn)
	for i := range want {
		assert.InDeltaSlice(t, want[i], got.Row(i), 1e-9)
	}
	assert.Equal(t, 0.0, got.At(2, 2))
	assert.InDelta(t, math.Sqrt2, got.At(0, 3), 1e-9)
}

func TestComputeDistances_PCAComponentCap(t *testing.T) {
	wide := [][]float64{{0, 0, 0}, {4, 0, 0}, {0, 1, 0}, {4, 1, 0}}
	src := testutil.NewMemorySource(wide, 1)
	out := filepath.Join(t.TempDir(), "out")
	p := newPipeline(t, src, WithDType(matrix.Float64), WithComponents(latent.ComponentPolicy{Max: 1}))

	_, err := p.ComputeDistances(context.Background(), []string{"pca"}, out)
	require.NoError(t, err)

	got, _, err := matrix.ReadFile(filepath.Join(out, "pca_distance.bin"), matrix.RowMajor)
	require.NoError(t, err)
	// Only the x axis survives, so samples differing in y coincide.
	assert.InDelta(t, 0, got.At(0, 2), 1e-9)
	assert.InDelta(t, 4, got.At(0, 3), 1e-9)
}

func TestComputeDistances_MemoryBudget(t *testing.T) {
	src := testutil.NewMemorySource(testutil.NewRNG(5).Uniform(10, 3), 1)
	out := filepath.Join(t.TempDir(), "out")
	mc := &BasicMetricsCollector{}
	p, err := New(src, src, WithMemoryBudget(2*3*8), WithMetricsCollector(mc))
	require.NoError(t, err)

	report, err := p.ComputeDistances(context.Background(), []string{"chebyshev"}, out)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Dim)

	stats := mc.GetStats()
	assert.Equal(t, int64(15), stats.BlockPairs, "5 blocks of 2 samples")
	assert.Equal(t, int64(60), stats.SamplePairs)
	done, total := mc.Progress("chebyshev")
	assert.Equal(t, 15, done)
	assert.Equal(t, 15, total)
	assert.Equal(t, int64(1), stats.RunCount)
}

func TestComputeDistances_DebugTextAndExport(t *testing.T) {
	src := testutil.NewMemorySource(square, 1)
	out := filepath.Join(t.TempDir(), "out")
	store := blobstore.NewMemoryStore()
	p := newPipeline(t, src, WithDebugText(true), WithExport(store, "runs/a"))

	report, err := p.ComputeDistances(context.Background(), []string{"sqeuclidean"}, out)
	require.NoError(t, err)

	text, err := os.ReadFile(filepath.Join(out, "sqeuclidean_distance.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(text), "0,1,1,2\n"))

	names, err := store.List(context.Background(), "runs/a/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"runs/a/distance_report.json",
		"runs/a/sqeuclidean_distance.bin",
		"runs/a/sqeuclidean_distance.bin.dims",
		"runs/a/sqeuclidean_distance.csv",
	}, names)
	assert.Equal(t, 4, report.Exported)

	local, err := os.ReadFile(filepath.Join(out, "sqeuclidean_distance.bin"))
	require.NoError(t, err)
	remote, err := blobstore.ReadAll(context.Background(), store, "runs/a/sqeuclidean_distance.bin")
	require.NoError(t, err)
	assert.Equal(t, local, remote)
}

func TestBuildModels(t *testing.T) {
	payloads := testutil.NewRNG(11).LowRank(7, 5, 2, 0.01)
	src := testutil.NewMemorySource(payloads, 1)
	out := filepath.Join(t.TempDir(), "models")
	mc := &BasicMetricsCollector{}
	p := newPipeline(t, src, WithComponents(latent.FixedComponents(2)), WithMetricsCollector(mc))

	h := partition.FromMemberships(2,
		[]int{0, 0, 0, 1, 1, 1, 1},
		[]int{0, 1, 1, 2, 2, 2, 2},
	)
	report, err := p.BuildModels(context.Background(), h, out)
	require.NoError(t, err)
	require.Len(t, report.Models, 5)
	assert.Equal(t, ModelInfo{Level: 3, Crystal: 0, Members: 1, K: 0}, report.Models[2])
	assert.Equal(t, 2, report.Degenerate(), "single member and a pair")
	assert.Equal(t, 5, report.Dim)

	dims, err := os.ReadFile(filepath.Join(out, "persistence-3", "crystal-0", "z.bin.dims"))
	require.NoError(t, err)
	assert.Equal(t, "1 0 float32", string(dims))

	dims, err = os.ReadFile(filepath.Join(out, "persistence-2", "crystal-1", "w0.bin.dims"))
	require.NoError(t, err)
	assert.Equal(t, "5 1 float32", string(dims))

	m, err := latent.ReadModel(filepath.Join(out, "persistence-2", "crystal-1"))
	require.NoError(t, err)
	assert.Equal(t, 2, m.K())
	assert.Equal(t, 4, m.Z.Rows())

	csv, err := os.ReadFile(filepath.Join(out, "ms_partitions.csv"))
	require.NoError(t, err)
	assert.Equal(t, "0,0,0,1,1,1,1\n0,1,1,2,2,2,2\n", string(csv))

	saved, err := partition.ReadFile(filepath.Join(out, "ms_partitions.json"), 0)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, saved.Persistences())

	assert.Equal(t, int64(5), mc.GetStats().ModelCount)
	assert.Equal(t, int64(1), mc.GetStats().ZeroComponent)
}

func TestBuildModels_ReplacesEarlierHierarchy(t *testing.T) {
	payloads := testutil.NewRNG(12).LowRank(7, 5, 2, 0.01)
	root := t.TempDir()
	out := filepath.Join(root, "models")
	p := newPipeline(t, testutil.NewMemorySource(payloads, 1), WithComponents(latent.FixedComponents(1)), WithReport(false))

	fine := partition.FromMemberships(2,
		[]int{0, 0, 0, 1, 1, 1, 1},
		[]int{0, 1, 1, 2, 2, 2, 2},
	)
	_, err := p.BuildModels(context.Background(), fine, out)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(out, "notes.txt"), []byte("keep"), 0o644))
	before := regularFiles(t, out)
	require.Contains(t, before, "persistence-3/crystal-2/W.bin")

	// A failed rebuild leaves the earlier tree in place.
	ffs := ifs.NewFaultyFS(nil)
	ffs.AddRule(filepath.Join("models", partitionsJSON), ifs.Fault{FailOnRename: true, Limit: 1})
	failing := newPipeline(t, testutil.NewMemorySource(payloads, 1),
		WithComponents(latent.FixedComponents(1)), WithReport(false), withFileSystem(ffs))
	coarse := partition.FromMemberships(2, []int{0, 0, 0, 0, 1, 1, 1})
	_, err = failing.BuildModels(context.Background(), coarse, out)
	require.ErrorIs(t, err, ifs.ErrInjected)
	assert.ElementsMatch(t, before, regularFiles(t, out))

	_, err = p.BuildModels(context.Background(), coarse, out)
	require.NoError(t, err)
	after := regularFiles(t, out)
	assert.Contains(t, after, "notes.txt")
	assert.Contains(t, after, "persistence-2/crystal-1/z.bin")
	for _, rel := range after {
		assert.False(t, strings.HasPrefix(rel, "persistence-3/"), rel)
	}

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no staging directory is left behind")
}

func TestBuildModels_InvalidHierarchy(t *testing.T) {
	src := testutil.NewMemorySource(square, 1)
	root := t.TempDir()
	p := newPipeline(t, src)

	_, err := p.BuildModels(context.Background(), partition.FromMemberships(1, []int{0, 0, 1}), filepath.Join(root, "m"))
	require.ErrorIs(t, err, partition.ErrInvalid)

	_, err = p.BuildModels(context.Background(), nil, filepath.Join(root, "m"))
	require.ErrorIs(t, err, partition.ErrInvalid)

	assert.Zero(t, src.Loads())
	assert.Empty(t, regularFiles(t, root))
}

func TestImportDistances(t *testing.T) {
	src := testutil.NewMemorySource(square, 1)
	root := t.TempDir()
	p := newPipeline(t, src)

	good := filepath.Join(root, "d.csv")
	require.NoError(t, os.WriteFile(good, []byte("0,1,1,2\n1,0,2,1\n1,2,0,1\n2,1,1,0\n"), 0o644))

	out := filepath.Join(root, "out")
	report, err := p.ImportDistances(context.Background(), good, "", out)
	require.NoError(t, err)
	assert.Equal(t, []string{PrecomputedMetric}, report.Metrics)
	got, _, err := matrix.ReadFile(filepath.Join(out, "precomputed_distance.bin"), matrix.RowMajor)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.At(0, 3))
	assert.Zero(t, src.Loads())

	asym := filepath.Join(root, "asym.csv")
	require.NoError(t, os.WriteFile(asym, []byte("0,1\n2,0\n"), 0o644))
	_, err = p.ImportDistances(context.Background(), asym, "x", filepath.Join(root, "bad"))
	assert.ErrorIs(t, err, ErrInvalidMatrix)

	small := filepath.Join(root, "small.csv")
	require.NoError(t, os.WriteFile(small, []byte("0,1\n1,0\n"), 0o644))
	_, err = p.ImportDistances(context.Background(), small, "x", filepath.Join(root, "bad"))
	assert.ErrorIs(t, err, ErrInvalidMatrix)
	assert.NoDirExists(t, filepath.Join(root, "bad"))
}

func TestNew_Validation(t *testing.T) {
	src := testutil.NewMemorySource(square, 1)

	_, err := New(nil, src)
	assert.Error(t, err)
	_, err = New(src, nil)
	assert.Error(t, err)
	_, err = New(src, src, WithBlocks(-1))
	assert.Error(t, err)
	_, err = New(src, src, WithPCAVariance(0))
	assert.Error(t, err)
	_, err = New(src, src, WithMinkowskiP(0.5))
	assert.ErrorIs(t, err, distance.ErrInvalidParameter)
	_, err = New(src, src, WithDType(matrix.DType(9)))
	assert.Error(t, err)
}

func TestComputeDistances_EmptyCollection(t *testing.T) {
	src := testutil.NewMemorySource(nil, 1)
	_, err := newPipeline(t, src).ComputeDistances(context.Background(), []string{"l1"}, filepath.Join(t.TempDir(), "out"))
	assert.ErrorIs(t, err, ErrEmptyCollection)
}
