// Package storage caches extracted feature vectors in BadgerDB so a rerun
// over the same training graph skips extraction.
//
// Vectors live in namespaces. A namespace is normally derived from the
// training graph fingerprint plus the feature set, so vectors computed
// against one graph are never served for another.
//
// Key Structure:
//   - Feature: 0x01 + namespace + 0x00 + source(8 BE) + sink(8 BE) -> float64s (8 BE each)
//
// Example:
//
//	store, err := storage.OpenFeatureStore(storage.FeatureStoreOptions{Dir: "./cache"})
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	extractor, _ := linkpredict.NewExtractor(g, linkpredict.ExtractorOptions{
//		Cache: store.Scope(storage.Namespace(g.Fingerprint(), "full")),
//	})
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/orneryd/edgepredict/pkg/graph"
)

// Errors returned by the feature store.
var (
	ErrStoreClosed    = errors.New("feature store closed")
	ErrCorruptVector  = errors.New("corrupt feature vector")
	ErrEmptyNamespace = errors.New("namespace must not be empty")
)

const (
	prefixFeature = byte(0x01)
	nsSeparator   = byte(0x00)
)

// FeatureStoreOptions configures OpenFeatureStore.
type FeatureStoreOptions struct {
	// Dir holds the badger files. Ignored when InMemory is set.
	Dir string

	// InMemory keeps everything in RAM. Useful for testing.
	InMemory bool

	// SyncWrites forces fsync after each write.
	SyncWrites bool

	// Logger receives badger's internal log lines. nil silences them.
	Logger *slog.Logger
}

// FeatureStore is a namespaced edge -> vector map backed by BadgerDB.
// Safe for concurrent use from multiple goroutines.
type FeatureStore struct {
	db     *badger.DB
	mu     sync.RWMutex
	closed bool
}

// OpenFeatureStore opens (or creates) a feature store.
func OpenFeatureStore(opts FeatureStoreOptions) (*FeatureStore, error) {
	badgerOpts := badger.DefaultOptions(opts.Dir)

	if opts.InMemory {
		badgerOpts = badgerOpts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}
	if opts.Logger != nil {
		badgerOpts = badgerOpts.WithLogger(badgerLogger{opts.Logger})
	} else {
		badgerOpts = badgerOpts.WithLogger(nil)
	}

	// Vectors are small; keep the footprint modest.
	badgerOpts = badgerOpts.
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithBlockCacheSize(32 << 20).
		WithIndexCacheSize(16 << 20)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}
	return &FeatureStore{db: db}, nil
}

// OpenFeatureStoreInMemory is OpenFeatureStore with InMemory set.
func OpenFeatureStoreInMemory() (*FeatureStore, error) {
	return OpenFeatureStore(FeatureStoreOptions{InMemory: true})
}

// Namespace derives a cache namespace from a graph fingerprint and a
// feature set name.
func Namespace(fingerprint, featureSet string) string {
	return fingerprint + "/" + featureSet
}

// ============================================================================
// Key and value encoding
// ============================================================================

func namespacePrefix(ns string) []byte {
	key := make([]byte, 0, len(ns)+2)
	key = append(key, prefixFeature)
	key = append(key, ns...)
	return append(key, nsSeparator)
}

func featureKey(ns string, e graph.Edge) []byte {
	key := namespacePrefix(ns)
	key = binary.BigEndian.AppendUint64(key, uint64(e.Source))
	return binary.BigEndian.AppendUint64(key, uint64(e.Sink))
}

func edgeFromKey(key []byte) graph.Edge {
	n := len(key)
	return graph.Edge{
		Source: graph.NodeID(binary.BigEndian.Uint64(key[n-16 : n-8])),
		Sink:   graph.NodeID(binary.BigEndian.Uint64(key[n-8:])),
	}
}

func encodeVector(vec []float64) []byte {
	buf := make([]byte, 0, 8*len(vec))
	for _, v := range vec {
		buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(v))
	}
	return buf
}

func decodeVector(data []byte) ([]float64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorruptVector, len(data))
	}
	vec := make([]float64, len(data)/8)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.BigEndian.Uint64(data[8*i:]))
	}
	return vec, nil
}

// ============================================================================
// Operations
// ============================================================================

func (s *FeatureStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Get returns the vector stored for e in namespace ns.
func (s *FeatureStore) Get(ns string, e graph.Edge) ([]float64, bool, error) {
	if err := s.checkOpen(); err != nil {
		return nil, false, err
	}

	var vec []float64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(featureKey(ns, e))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			vec, err = decodeVector(val)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

// Put stores vec for e in namespace ns, replacing any previous value.
func (s *FeatureStore) Put(ns string, e graph.Edge, vec []float64) error {
	if ns == "" {
		return ErrEmptyNamespace
	}
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(featureKey(ns, e), encodeVector(vec))
	})
}

// Edges lists the edges cached in namespace ns, in key order.
func (s *FeatureStore) Edges(ns string) ([]graph.Edge, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var edges []graph.Edge
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := namespacePrefix(ns)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			edges = append(edges, edgeFromKey(it.Item().Key()))
		}
		return nil
	})
	return edges, err
}

// Drop removes every vector in namespace ns.
func (s *FeatureStore) Drop(ns string) error {
	if ns == "" {
		return ErrEmptyNamespace
	}
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.DropPrefix(namespacePrefix(ns))
}

// Scope binds the store to one namespace. The result satisfies
// linkpredict.VectorCache.
func (s *FeatureStore) Scope(ns string) *Scope {
	return &Scope{store: s, ns: ns}
}

// Close closes the BadgerDB database.
func (s *FeatureStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Scope is a FeatureStore restricted to one namespace.
type Scope struct {
	store *FeatureStore
	ns    string
}

func (s *Scope) Namespace() string { return s.ns }

func (s *Scope) Get(e graph.Edge) ([]float64, bool, error) {
	return s.store.Get(s.ns, e)
}

func (s *Scope) Put(e graph.Edge, vec []float64) error {
	return s.store.Put(s.ns, e, vec)
}

// badgerLogger forwards badger's printf-style logging to slog.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(format string, args ...any) {
	b.l.Error(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

func (b badgerLogger) Warningf(format string, args ...any) {
	b.l.Warn(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

func (b badgerLogger) Infof(format string, args ...any) {
	b.l.Info(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}

func (b badgerLogger) Debugf(format string, args ...any) {
	b.l.Debug(fmt.Sprintf(format, args...), slog.String("component", "badger"))
}
