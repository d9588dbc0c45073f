// Package claims implements the advisory registry agents coordinate through:
// short-lived claims on world resources, advertised spare stock and
// cross-agent item reservations. Nothing is enforced; well-behaved agents
// check before acting.
package claims

import (
	"errors"
	"sort"

	"voxelcraft.ai/quartermaster/internal/world"
)

var ErrNotFound = errors.New("claims: reservation not found")

func sortSpare(out []world.PeerSpare) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].AgentID < out[j].AgentID
	})
}
