package artifact

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/cobuy/internal/cooccur"
	"github.com/persistorai/cobuy/internal/embedding"
	"github.com/persistorai/cobuy/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	s, err := NewStore(t.TempDir(), log)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func buildSet(t *testing.T, baskets ...[]string) *Set {
	t.Helper()

	txs := make([]models.Transaction, 0, len(baskets))
	for _, basket := range baskets {
		var items []models.LineItem
		for _, id := range basket {
			items = append(items, models.LineItem{ProductID: id, Quantity: 1})
		}
		txs = append(txs, models.Transaction{Items: items})
	}

	pairs := cooccur.ExtractPairs(txs)
	vocab, err := cooccur.BuildVocabulary(pairs)
	if err != nil {
		t.Fatalf("BuildVocabulary: %v", err)
	}
	model, err := embedding.New(vocab.Size(), embedding.Config{Dim: 8, Rand: rand.New(rand.NewPCG(1, 2))})
	if err != nil {
		t.Fatalf("embedding.New: %v", err)
	}

	return &Set{
		Model:     model,
		Vocab:     vocab,
		Pairs:     pairs,
		Adjacency: cooccur.BuildAdjacency(pairs),
		Manifest:  Manifest{SampleCount: len(pairs)},
	}
}

func TestStore_SaveLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	merchant := uuid.NewString()

	set := buildSet(t, []string{"P1", "P2"}, []string{"P1", "P3"})
	manifest, err := s.Save(ctx, merchant, set)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if manifest.VocabSize != 3 || manifest.PairsCount != 4 || manifest.EmbeddingDim != 8 {
		t.Errorf("manifest = %+v", manifest)
	}
	if manifest.Checksum == "" {
		t.Error("manifest checksum empty")
	}

	loaded, err := s.Load(ctx, merchant)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Vocab.Size() != 3 {
		t.Errorf("vocab size = %d, want 3", loaded.Vocab.Size())
	}
	if len(loaded.Pairs) != 4 {
		t.Errorf("pairs = %d, want 4", len(loaded.Pairs))
	}
	if !loaded.Adjacency.Has("P1", "P3") || loaded.Adjacency.Has("P2", "P3") {
		t.Errorf("adjacency = %v", loaded.Adjacency.ToLists())
	}

	want, _ := set.Model.PredictBatch(0, []int{1, 2})
	got, _ := loaded.Model.PredictBatch(0, []int{1, 2})
	for i := range want {
		if want[i] != got[i] {
			t.Errorf("score[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestStore_LoadNotTrained(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Load(context.Background(), uuid.NewString())
	if !errors.Is(err, ErrNotTrained) {
		t.Errorf("err = %v, want ErrNotTrained", err)
	}
}

func TestStore_InvalidMerchant(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []string{"", "../etc", "not-a-uuid"} {
		if _, err := s.Load(context.Background(), id); !errors.Is(err, models.ErrInvalidMerchant) {
			t.Errorf("Load(%q) err = %v, want ErrInvalidMerchant", id, err)
		}
	}
}

func TestStore_PartialSetIsNotTrained(t *testing.T) {
	files := []string{fileModel, fileForward, fileReverse, filePairs, fileAdjacency, fileManifest}

	for _, missing := range files {
		t.Run(missing, func(t *testing.T) {
			s := newTestStore(t)
			ctx := context.Background()
			merchant := uuid.NewString()

			if _, err := s.Save(ctx, merchant, buildSet(t, []string{"a", "b"})); err != nil {
				t.Fatalf("Save: %v", err)
			}

			gen, err := os.Readlink(filepath.Join(s.BaseDir(), merchant, currentLink))
			if err != nil {
				t.Fatalf("Readlink: %v", err)
			}
			if err := os.Remove(filepath.Join(s.BaseDir(), merchant, gen, missing)); err != nil {
				t.Fatalf("Remove: %v", err)
			}

			if _, err := s.Load(ctx, merchant); !errors.Is(err, ErrNotTrained) {
				t.Errorf("err = %v, want ErrNotTrained", err)
			}
		})
	}
}

func TestStore_CorruptModel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	merchant := uuid.NewString()

	if _, err := s.Save(ctx, merchant, buildSet(t, []string{"a", "b"})); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var m Manifest
	gen, _ := os.Readlink(filepath.Join(s.BaseDir(), merchant, currentLink))
	manifestPath := filepath.Join(s.BaseDir(), merchant, gen, fileManifest)
	if err := readJSON(manifestPath, &m); err != nil {
		t.Fatalf("readJSON: %v", err)
	}
	m.Checksum = strings.Repeat("0", 64)
	if err := os.Remove(manifestPath); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := writeJSON(manifestPath, m); err != nil {
		t.Fatalf("writeJSON: %v", err)
	}

	_, err := s.Load(ctx, merchant)
	if err == nil || errors.Is(err, ErrNotTrained) {
		t.Fatalf("err = %v, want checksum error", err)
	}
	if !strings.Contains(err.Error(), "checksum") {
		t.Errorf("err = %v, want checksum mismatch", err)
	}
}

func TestStore_RetrainReplacesState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	merchant := uuid.NewString()

	if _, err := s.Save(ctx, merchant, buildSet(t, []string{"A", "B"}, []string{"A", "C"})); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if _, err := s.Save(ctx, merchant, buildSet(t, []string{"X", "Y"})); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	loaded, err := s.Load(ctx, merchant)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	lists := loaded.Adjacency.ToLists()
	if len(lists) != 2 {
		t.Errorf("adjacency = %v, want only X and Y", lists)
	}
	for _, stale := range []string{"A", "B", "C"} {
		if _, ok := lists[stale]; ok {
			t.Errorf("stale adjacency entry %s survived", stale)
		}
		if _, ok := loaded.Vocab.Index(stale); ok {
			t.Errorf("stale vocabulary entry %s survived", stale)
		}
	}

	entries, err := os.ReadDir(filepath.Join(s.BaseDir(), merchant))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	gens := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), genPrefix) {
			gens++
		}
	}
	if gens != 1 {
		t.Errorf("generations on disk = %d, want 1", gens)
	}
}

func TestStore_ConcurrentLoadDuringSave(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	merchant := uuid.NewString()

	if _, err := s.Save(ctx, merchant, buildSet(t, []string{"a", "b"})); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				set, err := s.Load(ctx, merchant)
				if err != nil {
					errs <- err
					continue
				}
				if set.Vocab.Size() < 2 {
					errs <- errors.New("incomplete vocabulary observed")
				}
			}
		}()
	}

	for range 5 {
		if _, err := s.Save(ctx, merchant, buildSet(t, []string{"a", "b", "c"})); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent load: %v", err)
	}
}

func TestStore_LoadSurvivesOtherCallerCancel(t *testing.T) {
	s := newTestStore(t)
	merchant := uuid.NewString()

	baskets := make([][]string, 0, 1000)
	for i := range 1000 {
		baskets = append(baskets, []string{fmt.Sprintf("p%d", i), fmt.Sprintf("p%d", i+1)})
	}
	if _, err := s.Save(context.Background(), merchant, buildSet(t, baskets...)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	for range 20 {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			_, err := s.Load(ctx, merchant)
			done <- err
		}()
		cancel()

		set, err := s.Load(context.Background(), merchant)
		if err != nil {
			t.Fatalf("live caller Load: %v", err)
		}
		if set.Vocab.Size() != 1001 {
			t.Errorf("vocab size = %d, want 1001", set.Vocab.Size())
		}

		if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("cancelled caller Load: %v", err)
		}
	}
}

func TestStore_LoadCancelledCaller(t *testing.T) {
	s := newTestStore(t)
	merchant := uuid.NewString()
	if _, err := s.Save(context.Background(), merchant, buildSet(t, []string{"a", "b"})); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Load(ctx, merchant); err != nil && !errors.Is(err, context.Canceled) {
		t.Errorf("Load with cancelled context: %v", err)
	}
	if _, err := s.Load(context.Background(), merchant); err != nil {
		t.Errorf("Load after cancelled caller: %v", err)
	}
}

func TestStore_InfoAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	merchant := uuid.NewString()

	if _, err := s.Info(ctx, merchant); !errors.Is(err, ErrNotTrained) {
		t.Errorf("Info before save err = %v, want ErrNotTrained", err)
	}

	if _, err := s.Save(ctx, merchant, buildSet(t, []string{"a", "b"}, []string{"b", "c"})); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := s.Info(ctx, merchant)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.MerchantID != merchant || info.VocabSize != 3 || info.PairsCount != 4 {
		t.Errorf("info = %+v", info)
	}

	merchants, err := s.Merchants()
	if err != nil {
		t.Fatalf("Merchants: %v", err)
	}
	if len(merchants) != 1 || merchants[0] != merchant {
		t.Errorf("merchants = %v, want [%s]", merchants, merchant)
	}

	if err := s.Delete(ctx, merchant); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Load(ctx, merchant); !errors.Is(err, ErrNotTrained) {
		t.Errorf("Load after delete err = %v, want ErrNotTrained", err)
	}
	if err := s.Delete(ctx, merchant); !errors.Is(err, ErrNotTrained) {
		t.Errorf("second Delete err = %v, want ErrNotTrained", err)
	}
}
