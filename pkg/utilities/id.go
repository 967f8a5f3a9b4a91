package utilities

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// IDGenerator hands out snowflake IDs from a single node so IDs generated
// within one process never collide. A nil node falls back to KSUIDs.
type IDGenerator struct {
	node *snowflake.Node
}

// NewIDGenerator creates a generator bound to nodeID. If the node cannot be
// initialized (out of range) the generator still works, producing KSUIDs.
func NewIDGenerator(nodeID int64) *IDGenerator {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return &IDGenerator{}
	}
	return &IDGenerator{node: node}
}

// IDGeneratorFromEnv reads the node ID from SNOWFLAKE_NODE, defaulting to 1.
func IDGeneratorFromEnv() *IDGenerator {
	nodeID, err := strconv.ParseInt(os.Getenv("SNOWFLAKE_NODE"), 10, 64)
	if err != nil {
		nodeID = 1
	}
	return NewIDGenerator(nodeID)
}

// Next returns a new unique ID string.
func (g *IDGenerator) Next() string {
	if g == nil || g.node == nil {
		return NewKSUID()
	}
	return g.node.Generate().String()
}
