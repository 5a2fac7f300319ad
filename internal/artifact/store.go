// Package artifact persists per-merchant model artifact sets.
//
// Each successful training run writes a complete generation directory
// under <base>/<merchant>/ and then swaps the "current" symlink to point at
// it, so a reader resolving "current" always sees one whole set. Older
// generations are removed after the swap.
//
// Layout of a generation:
//
//	model.gob.gz        gzip(gob(embedding.Weights))
//	vocab_forward.json  product id -> index
//	vocab_reverse.json  index -> product id
//	pairs.json          raw co-purchase pairs of the run
//	cooccurrence.json   product id -> sorted co-purchased ids
//	manifest.json       Manifest, written last
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/persistorai/cobuy/internal/cooccur"
	"github.com/persistorai/cobuy/internal/embedding"
	"github.com/persistorai/cobuy/internal/models"
)

// ErrNotTrained means the merchant has no complete artifact set.
var ErrNotTrained = errors.New("model not trained")

const (
	currentLink  = "current"
	genPrefix    = "gen-"
	stagePrefix  = ".stage-"
	linkPrefix   = ".link-"
	dirPerm      = 0o750
	filePerm     = 0o640
	loadAttempts = 2

	fileModel     = "model.gob.gz"
	fileForward   = "vocab_forward.json"
	fileReverse   = "vocab_reverse.json"
	filePairs     = "pairs.json"
	fileAdjacency = "cooccurrence.json"
	fileManifest  = "manifest.json"
)

// Set is everything the recommender needs for one merchant. A Set returned
// by Load may be shared between concurrent callers and must not be mutated.
type Set struct {
	Model     *embedding.Model
	Vocab     *cooccur.Vocabulary
	Pairs     []cooccur.Pair
	Adjacency cooccur.Adjacency
	Manifest  Manifest
}

// Manifest records how and when a generation was produced.
type Manifest struct {
	Generation   string    `json:"generation"`
	TrainedAt    time.Time `json:"trained_at"`
	VocabSize    int       `json:"vocab_size"`
	EmbeddingDim int       `json:"embedding_dim"`
	PairsCount   int       `json:"pairs_count"`
	SampleCount  int       `json:"sample_count"`
	Checksum     string    `json:"checksum"`
	SizeBytes    int64     `json:"size_bytes"`
}

// Store reads and writes artifact sets below a base directory.
type Store struct {
	baseDir string
	log     *logrus.Logger
	loads   singleflight.Group
}

// NewStore creates the base directory if needed and returns a Store.
func NewStore(baseDir string, log *logrus.Logger) (*Store, error) {
	if err := os.MkdirAll(baseDir, dirPerm); err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}

	return &Store{baseDir: baseDir, log: log}, nil
}

// BaseDir returns the root directory of the store.
func (s *Store) BaseDir() string { return s.baseDir }

func (s *Store) merchantDir(merchantID string) (string, error) {
	id, err := uuid.Parse(merchantID)
	if err != nil {
		return "", fmt.Errorf("%w: %s", models.ErrInvalidMerchant, merchantID)
	}

	return filepath.Join(s.baseDir, id.String()), nil
}

// Save writes set as a new generation and publishes it. The previous
// generation is replaced wholesale. Callers must not Save the same merchant
// concurrently.
func (s *Store) Save(ctx context.Context, merchantID string, set *Set) (*Manifest, error) {
	if set == nil || set.Model == nil || set.Vocab == nil {
		return nil, errors.New("artifact set is incomplete")
	}

	dir, err := s.merchantDir(merchantID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("creating merchant directory: %w", err)
	}

	gen := genPrefix + uuid.NewString()
	stage := filepath.Join(dir, stagePrefix+gen)
	if err := os.Mkdir(stage, dirPerm); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}

	manifest, err := s.writeGeneration(ctx, stage, gen, set)
	if err != nil {
		_ = os.RemoveAll(stage) //nolint:errcheck // best-effort cleanup of a failed write.
		return nil, err
	}

	if err := os.Rename(stage, filepath.Join(dir, gen)); err != nil {
		_ = os.RemoveAll(stage) //nolint:errcheck // best-effort cleanup of a failed write.
		return nil, fmt.Errorf("finalizing generation: %w", err)
	}

	if err := publish(dir, gen); err != nil {
		return nil, err
	}

	s.prune(dir, gen)

	s.log.WithFields(logrus.Fields{
		"merchant_id": merchantID,
		"generation":  gen,
		"vocab_size":  manifest.VocabSize,
		"pairs":       manifest.PairsCount,
	}).Debug("artifact set published")

	return manifest, nil
}

func (s *Store) writeGeneration(ctx context.Context, stage, gen string, set *Set) (*Manifest, error) {
	checksum, size, err := writeModel(filepath.Join(stage, fileModel), set.Model.Weights())
	if err != nil {
		return nil, err
	}

	files := []struct {
		name string
		v    any
	}{
		{fileForward, set.Vocab.Forward},
		{fileReverse, set.Vocab.ReverseMap()},
		{filePairs, set.Pairs},
		{fileAdjacency, set.Adjacency.ToLists()},
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("writing artifacts: %w", err)
		}
		if err := writeJSON(filepath.Join(stage, f.name), f.v); err != nil {
			return nil, err
		}
	}

	trainedAt := set.Manifest.TrainedAt
	if trainedAt.IsZero() {
		trainedAt = time.Now().UTC()
	}

	manifest := &Manifest{
		Generation:   gen,
		TrainedAt:    trainedAt,
		VocabSize:    set.Vocab.Size(),
		EmbeddingDim: set.Model.Dim(),
		PairsCount:   len(set.Pairs),
		SampleCount:  set.Manifest.SampleCount,
		Checksum:     checksum,
		SizeBytes:    size,
	}
	if err := writeJSON(filepath.Join(stage, fileManifest), manifest); err != nil {
		return nil, err
	}

	return manifest, nil
}

// publish points dir/current at gen by renaming a fresh symlink over it.
func publish(dir, gen string) error {
	tmp := filepath.Join(dir, linkPrefix+uuid.NewString())
	if err := os.Symlink(gen, tmp); err != nil {
		return fmt.Errorf("creating generation link: %w", err)
	}

	if err := os.Rename(tmp, filepath.Join(dir, currentLink)); err != nil {
		_ = os.Remove(tmp) //nolint:errcheck // best-effort cleanup.
		return fmt.Errorf("publishing generation: %w", err)
	}

	return nil
}

// prune removes every generation and leftover staging entry except keep.
func (s *Store) prune(dir, keep string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.log.WithError(err).Warn("listing generations for prune")
		return
	}

	for _, e := range entries {
		name := e.Name()
		if name == keep || name == currentLink {
			continue
		}
		if !strings.HasPrefix(name, genPrefix) && !strings.HasPrefix(name, stagePrefix) && !strings.HasPrefix(name, linkPrefix) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, name)); err != nil {
			s.log.WithError(err).WithField("entry", name).Warn("removing stale generation")
		}
	}
}

// Load returns the merchant's live artifact set or ErrNotTrained. Concurrent
// loads for the same merchant share one read.
func (s *Store) Load(ctx context.Context, merchantID string) (*Set, error) {
	dir, err := s.merchantDir(merchantID)
	if err != nil {
		return nil, err
	}

	// The shared load outlives any single caller; each caller stops waiting
	// when its own context ends.
	ch := s.loads.DoChan(dir, func() (any, error) {
		return s.load(context.WithoutCancel(ctx), dir)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("loading artifacts: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}

		return res.Val.(*Set), nil //nolint:forcetypeassert // load only returns *Set.
	}
}

func (s *Store) load(ctx context.Context, dir string) (*Set, error) {
	var lastErr error

	// A concurrent publish may prune the generation we resolved; resolve
	// again once before reporting the set as missing.
	for range loadAttempts {
		gen, err := os.Readlink(filepath.Join(dir, currentLink))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, ErrNotTrained
			}
			return nil, fmt.Errorf("resolving current generation: %w", err)
		}

		set, err := readGeneration(ctx, filepath.Join(dir, gen))
		if err == nil {
			return set, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %w", ErrNotTrained, lastErr)
}

func readGeneration(ctx context.Context, genDir string) (*Set, error) {
	var manifest Manifest
	if err := readJSON(filepath.Join(genDir, fileManifest), &manifest); err != nil {
		return nil, err
	}

	weights, err := readModel(filepath.Join(genDir, fileModel), manifest.Checksum)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("loading artifacts: %w", err)
	}

	var (
		forward   map[string]int
		reverse   map[int]string
		pairs     []cooccur.Pair
		adjacency map[string][]string
	)
	for name, target := range map[string]any{
		fileForward:   &forward,
		fileReverse:   &reverse,
		filePairs:     &pairs,
		fileAdjacency: &adjacency,
	} {
		if err := readJSON(filepath.Join(genDir, name), target); err != nil {
			return nil, err
		}
	}

	vocab, err := cooccur.VocabularyFromReverse(reverse)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", fileReverse, err)
	}
	if len(forward) != vocab.Size() {
		return nil, fmt.Errorf("vocabulary maps disagree: %d forward, %d reverse", len(forward), vocab.Size())
	}
	for id, idx := range forward {
		if got, ok := vocab.Index(id); !ok || got != idx {
			return nil, fmt.Errorf("vocabulary maps disagree on %q", id)
		}
	}

	model, err := embedding.FromWeights(weights)
	if err != nil {
		return nil, fmt.Errorf("restoring model: %w", err)
	}
	if model.VocabSize() != vocab.Size() {
		return nil, fmt.Errorf("model has %d rows for %d products", model.VocabSize(), vocab.Size())
	}

	return &Set{
		Model:     model,
		Vocab:     vocab,
		Pairs:     pairs,
		Adjacency: cooccur.AdjacencyFromLists(adjacency),
		Manifest:  manifest,
	}, nil
}

// Info returns the manifest of the merchant's live generation.
func (s *Store) Info(_ context.Context, merchantID string) (*models.ModelInfo, error) {
	dir, err := s.merchantDir(merchantID)
	if err != nil {
		return nil, err
	}

	gen, err := os.Readlink(filepath.Join(dir, currentLink))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotTrained
		}
		return nil, fmt.Errorf("resolving current generation: %w", err)
	}

	var m Manifest
	if err := readJSON(filepath.Join(dir, gen, fileManifest), &m); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotTrained
		}
		return nil, err
	}

	return &models.ModelInfo{
		MerchantID:   merchantID,
		Generation:   m.Generation,
		TrainedAt:    m.TrainedAt,
		VocabSize:    m.VocabSize,
		EmbeddingDim: m.EmbeddingDim,
		PairsCount:   m.PairsCount,
		SampleCount:  m.SampleCount,
		Checksum:     m.Checksum,
	}, nil
}

// Delete removes every artifact of the merchant. It returns ErrNotTrained
// when there is nothing to delete.
func (s *Store) Delete(_ context.Context, merchantID string) error {
	dir, err := s.merchantDir(merchantID)
	if err != nil {
		return err
	}

	if _, err := os.Lstat(dir); errors.Is(err, fs.ErrNotExist) {
		return ErrNotTrained
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("deleting artifacts: %w", err)
	}

	s.log.WithField("merchant_id", merchantID).Info("artifact set deleted")

	return nil
}

// Merchants lists merchant IDs that currently have a published generation.
func (s *Store) Merchants() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("listing artifact directory: %w", err)
	}

	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := uuid.Parse(e.Name()); err != nil {
			continue
		}
		if _, err := os.Lstat(filepath.Join(s.baseDir, e.Name(), currentLink)); err == nil {
			out = append(out, e.Name())
		}
	}

	return out, nil
}
