// Package dataio reads and writes the pipeline's file formats: the
// tab-separated edge and query files, the feature CSV exchanged with
// classifiers, and the prediction CSV.
package dataio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/orneryd/edgepredict/pkg/graph"
)

// Errors returned by this package.
var (
	ErrMalformedFeatures    = errors.New("malformed feature file")
	ErrMalformedPredictions = errors.New("malformed prediction file")
	ErrSaveExhausted        = errors.New("all prediction file slots are taken")
)

// maxLineSize bounds a single adjacency line. Hub nodes list every sink on
// one line, so the bufio default of 64KB is too small.
const maxLineSize = 64 << 20

func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return sc
}

func parseNodeID(tok string) (graph.NodeID, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(tok), 10, 64)
	return graph.NodeID(v), err
}

// ReadEdges parses adjacency lines of the form "source\tsink\tsink...".
// Edges are returned in file order. Blank lines are skipped; any token that
// is not an integer fails the whole read with its line number.
func ReadEdges(r io.Reader) ([]graph.Edge, error) {
	var edges []graph.Edge
	sc := newScanner(r)

	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r\n")
		if strings.TrimSpace(text) == "" {
			continue
		}

		fields := strings.Split(text, "\t")
		source, err := parseNodeID(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: source: %w", line, err)
		}
		for _, tok := range fields[1:] {
			if strings.TrimSpace(tok) == "" {
				continue
			}
			sink, err := parseNodeID(tok)
			if err != nil {
				return nil, fmt.Errorf("line %d: sink: %w", line, err)
			}
			edges = append(edges, graph.Edge{Source: source, Sink: sink})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading edges: %w", err)
	}
	return edges, nil
}

// ReadQueries parses rows of "id\tsource\tsink". Rows whose source or sink
// does not parse as an integer (the header) are skipped.
func ReadQueries(r io.Reader) ([]graph.Edge, error) {
	var edges []graph.Edge
	sc := newScanner(r)

	for sc.Scan() {
		fields := strings.Split(sc.Text(), "\t")
		if len(fields) < 3 {
			continue
		}
		source, err := parseNodeID(fields[1])
		if err != nil {
			continue
		}
		sink, err := parseNodeID(fields[2])
		if err != nil {
			continue
		}
		edges = append(edges, graph.Edge{Source: source, Sink: sink})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading queries: %w", err)
	}
	return edges, nil
}
