// Package graph provides the directed adjacency model used by the edge
// prediction pipeline.
//
// A Store keeps two views of the same edge set:
//   - forward: node -> nodes it follows (its "following")
//   - reverse: node -> nodes that follow it (its "followers")
//
// Both views are written together by Builder.Add so an edge can never appear
// in one without the other. Once Build is called the Store is read-only and
// can be shared by any number of goroutines.
//
// Example:
//
//	b := graph.NewBuilder()
//	b.Add(graph.Edge{Source: 1, Sink: 2})
//	b.Add(graph.Edge{Source: 3, Sink: 2})
//	store := b.Build()
//
//	store.Following(1) // [2]
//	store.Followers(2) // [1 3]
package graph

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// NodeID identifies a node. Nodes carry no attributes.
type NodeID int64

// Edge is a directed pair: Source follows Sink.
type Edge struct {
	Source NodeID
	Sink   NodeID
}

func (e Edge) String() string {
	return fmt.Sprintf("%d->%d", e.Source, e.Sink)
}

// Reverse returns the edge pointing the other way.
func (e Edge) Reverse() Edge {
	return Edge{Source: e.Sink, Sink: e.Source}
}

// NodeSet is a set of node IDs.
type NodeSet map[NodeID]struct{}

// NewNodeSet builds a set from the given IDs.
func NewNodeSet(ids ...NodeID) NodeSet {
	s := make(NodeSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is in the set.
func (s NodeSet) Contains(id NodeID) bool {
	_, ok := s[id]
	return ok
}

// Size returns the number of elements.
func (s NodeSet) Size() int {
	return len(s)
}

// Sorted returns the members in ascending order.
func (s NodeSet) Sorted() []NodeID {
	out := make([]NodeID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// adjacency is one direction of the graph: an ordered neighbour list for
// deterministic iteration plus a set for membership checks.
type adjacency struct {
	order map[NodeID][]NodeID
	sets  map[NodeID]NodeSet
}

func newAdjacency() adjacency {
	return adjacency{
		order: make(map[NodeID][]NodeID),
		sets:  make(map[NodeID]NodeSet),
	}
}

// add appends to the ordered list unless already present.
func (a adjacency) add(from, to NodeID) bool {
	set, ok := a.sets[from]
	if !ok {
		set = make(NodeSet)
		a.sets[from] = set
	}
	if set.Contains(to) {
		return false
	}
	set[to] = struct{}{}
	a.order[from] = append(a.order[from], to)
	return true
}

// Builder accumulates edges into a Store.
type Builder struct {
	forward adjacency
	reverse adjacency
	edges   []Edge
	built   bool
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		forward: newAdjacency(),
		reverse: newAdjacency(),
	}
}

// Add inserts an edge into both directions. Duplicate edges are ignored.
// Add after Build panics: the built Store shares the builder's maps.
func (b *Builder) Add(e Edge) {
	if b.built {
		panic("graph: Add called after Build")
	}
	if b.forward.add(e.Source, e.Sink) {
		b.reverse.add(e.Sink, e.Source)
		b.edges = append(b.edges, e)
	}
}

// AddAll inserts every edge in order.
func (b *Builder) AddAll(edges []Edge) {
	for _, e := range edges {
		b.Add(e)
	}
}

// Build freezes the builder and returns the Store.
func (b *Builder) Build() *Store {
	b.built = true

	sources := make([]NodeID, 0, len(b.forward.order))
	universe := make(NodeSet)
	for src, sinks := range b.forward.order {
		if len(sinks) > 0 {
			sources = append(sources, src)
		}
		universe[src] = struct{}{}
		for _, k := range sinks {
			universe[k] = struct{}{}
		}
	}
	for k := range b.reverse.order {
		universe[k] = struct{}{}
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })

	return &Store{
		forward: b.forward,
		reverse: b.reverse,
		edges:   b.edges,
		sources: sources,
		nodes:   universe.Sorted(),
	}
}

// FromEdges builds a Store from a slice of edges.
func FromEdges(edges []Edge) *Store {
	b := NewBuilder()
	b.AddAll(edges)
	return b.Build()
}

// Store is an immutable directed graph.
type Store struct {
	forward adjacency
	reverse adjacency
	edges   []Edge
	sources []NodeID
	nodes   []NodeID
}

var emptySet = NodeSet{}

// Following returns the nodes n follows, in insertion order.
// The returned slice must not be modified.
func (s *Store) Following(n NodeID) []NodeID {
	return s.forward.order[n]
}

// Followers returns the nodes following n, in insertion order.
// The returned slice must not be modified.
func (s *Store) Followers(n NodeID) []NodeID {
	return s.reverse.order[n]
}

// FollowingSet returns the set of nodes n follows. Never nil.
// The returned set must not be modified.
func (s *Store) FollowingSet(n NodeID) NodeSet {
	if set, ok := s.forward.sets[n]; ok {
		return set
	}
	return emptySet
}

// FollowerSet returns the set of nodes following n. Never nil.
// The returned set must not be modified.
func (s *Store) FollowerSet(n NodeID) NodeSet {
	if set, ok := s.reverse.sets[n]; ok {
		return set
	}
	return emptySet
}

// HasEdge reports whether source follows sink.
func (s *Store) HasEdge(source, sink NodeID) bool {
	return s.FollowingSet(source).Contains(sink)
}

// Sources returns every node with at least one outgoing edge, ascending.
func (s *Store) Sources() []NodeID {
	return s.sources
}

// Nodes returns the node universe (forward keys, all neighbours and reverse
// keys), ascending.
func (s *Store) Nodes() []NodeID {
	return s.nodes
}

// Edges returns the edges in insertion order.
func (s *Store) Edges() []Edge {
	return s.edges
}

// EdgeCount returns the number of distinct edges.
func (s *Store) EdgeCount() int {
	return len(s.edges)
}

// NodeCount returns the size of the node universe.
func (s *Store) NodeCount() int {
	return len(s.nodes)
}

// OutDegree returns len(Following(n)).
func (s *Store) OutDegree(n NodeID) int {
	return len(s.forward.order[n])
}

// InDegree returns len(Followers(n)).
func (s *Store) InDegree(n NodeID) int {
	return len(s.reverse.order[n])
}

// Fingerprint returns a BLAKE2b-256 digest of the edge set. Two stores built
// from the same edges (in any order) share a fingerprint.
func (s *Store) Fingerprint() string {
	sorted := make([]Edge, len(s.edges))
	copy(sorted, s.edges)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Source != sorted[j].Source {
			return sorted[i].Source < sorted[j].Source
		}
		return sorted[i].Sink < sorted[j].Sink
	})

	h, _ := blake2b.New256(nil)
	var buf [16]byte
	for _, e := range sorted {
		binary.BigEndian.PutUint64(buf[:8], uint64(e.Source))
		binary.BigEndian.PutUint64(buf[8:], uint64(e.Sink))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
