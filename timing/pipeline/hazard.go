package pipeline

import (
	"github.com/sarchlab/tomasim/insts"
	"github.com/sarchlab/tomasim/timing/latency"
)

// Hazard identifies the store that blocks a memory access.
type Hazard struct {
	// Store is the tag of the blocking STORE.
	Store Tag
	// Buffer is the buffer index of the blocking STORE, or -1 if it has
	// left the buffers and waits to commit.
	Buffer int
}

// HazardUnit performs memory disambiguation between in-flight loads and
// stores.
type HazardUnit struct {
	policy latency.CommitPolicy
}

// NewHazardUnit creates a new hazard detection unit for the given commit
// policy.
func NewHazardUnit(policy latency.CommitPolicy) *HazardUnit {
	return &HazardUnit{policy: policy}
}

// FindHazard checks whether buffer requester, whose address is resolved,
// must stall because of a STORE to the same address whose memory write is
// not yet visible.
//
// A busy STORE buffer blocks the requester if it is older. A LOAD is also
// blocked by any other busy STORE that has not finished its access, unless
// that STORE is younger and still waits for its data, which may come from
// the LOAD itself. Under
// the commit-gated policy, older STOREs that have written back but not yet
// committed block LOADs too, since their memory write happens at commit. A
// STORE is never blocked by a younger STORE.
func (h *HazardUnit) FindHazard(
	requester int,
	buffers []LoadStoreBuffer,
	order *ProgramOrder,
) (Hazard, bool) {
	req := &buffers[requester]
	isLoad := req.Op == insts.OpLOAD
	gated := h.policy == latency.CommitGated

	for i := range buffers {
		if i == requester {
			continue
		}

		c := &buffers[i]
		if !c.Busy || !c.AddressReady || c.Op != insts.OpSTORE || c.Address != req.Address {
			continue
		}

		older := c.Owner < req.Owner
		pending := isLoad && !c.Ready && !c.Data.Waiting
		if older || pending {
			return Hazard{Store: c.Owner, Buffer: i}, true
		}
	}

	if !isLoad || !gated {
		return Hazard{}, false
	}

	for id := order.Committed(); id < int(req.Owner) && id < order.Len(); id++ {
		e := order.At(id)
		if e.Inst.Op != insts.OpSTORE || e.State != StateWriteResult {
			continue
		}
		if e.AddressValid && e.Address == req.Address {
			return Hazard{Store: e.Tag(), Buffer: -1}, true
		}
	}

	return Hazard{}, false
}
