package testutil

import (
	"fmt"
	"sync/atomic"
)

// FixedID returns the same id on every call.
//
// Golden traces embed the run id; a fixed id keeps them byte-identical across
// runs. Satisfies engine.IDGenerator.
type FixedID struct {
	id string
}

// NewFixedID creates a generator for id. An empty id defaults to
// "test-run-default".
func NewFixedID(id string) *FixedID {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedID{id: id}
}

func (g *FixedID) Generate() string {
	return g.id
}

// SequentialIDs returns prefix-1, prefix-2, ... Safe for concurrent use.
type SequentialIDs struct {
	prefix string
	n      atomic.Int64
}

func NewSequentialIDs(prefix string) *SequentialIDs {
	return &SequentialIDs{prefix: prefix}
}

func (g *SequentialIDs) Generate() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.n.Add(1))
}
