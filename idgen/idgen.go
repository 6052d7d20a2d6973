// Package idgen produces the human-readable order numbers. Uniqueness
// comes from a snowflake node: the (millisecond, step) pair is
// collision-free for a single node, so the formatted number never repeats.
package idgen

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Generator issues order numbers of the form ORD-<unix-millis>-<sequence>.
type Generator struct {
	node *snowflake.Node
}

// New creates a Generator for the given node id (0-1023).
func New(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %w", err)
	}
	return &Generator{node: node}, nil
}

// NextOrderNumber returns the next order number.
func (g *Generator) NextOrderNumber() string {
	id := g.node.Generate()
	return fmt.Sprintf("ORD-%d-%03d", id.Time(), id.Step())
}
