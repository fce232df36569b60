package pipeline

import (
	"errors"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/insts"
	"github.com/sarchlab/tomasim/timing/latency"
)

// issue dispatches the instruction at the PC into a free slot of its pool.
// At most one instruction is issued per cycle, in program order. If no slot
// is free the PC does not advance.
func (p *Pipeline) issue() {
	if p.pc >= p.order.Len() {
		return
	}

	entry := p.order.At(p.pc)

	var issued bool
	switch entry.Inst.Op.Family() {
	case insts.FamilyAdd:
		issued = p.issueArithmetic(entry, p.addPool)
	case insts.FamilyMul:
		issued = p.issueArithmetic(entry, p.mulPool)
	case insts.FamilyMemory:
		issued = p.issueMemory(entry)
	default:
		p.log.Info("unknown opcode, instruction skipped",
			"cycle", p.cycle, "id", entry.ID,
			"mnemonic", entry.Inst.Mnemonic, "line", entry.Inst.Line)
		entry.Skipped = true
		entry.State = StateWriteResult
		issued = true
	}

	if !issued {
		p.stats.StructuralStalls++
		return
	}

	entry.IssueCycle = p.cycle
	p.pc++
	p.stats.Issued++
}

func (p *Pipeline) issueArithmetic(entry *Entry, pool *StationPool) bool {
	idx := pool.FindFree()
	if idx < 0 {
		p.log.V(1).Info("issue stalled, no free reservation station",
			"cycle", p.cycle, "id", entry.ID, "pool", pool.Prefix)
		return false
	}

	inst := &entry.Inst
	tag := entry.Tag()

	rs := &pool.Stations[idx]
	rs.Clear()
	rs.Busy = true
	rs.Op = inst.Op
	rs.Owner = tag

	// Sources are read before the destination is renamed, so ADD F1,F1,F2
	// reads the old F1.
	rs.J = readOperand(p.alias, p.regFile, inst.Src1)
	rs.K = readOperand(p.alias, p.regFile, inst.Src2)
	p.alias.Set(inst.Dest, tag)

	entry.State = StateIssued
	entry.Unit = pool.Name(idx)

	p.log.V(1).Info("issue", "cycle", p.cycle, "id", entry.ID,
		"inst", inst.String(), "unit", entry.Unit)

	return true
}

func (p *Pipeline) issueMemory(entry *Entry) bool {
	idx := p.lsPool.FindFree()
	if idx < 0 {
		p.log.V(1).Info("issue stalled, no free load/store buffer",
			"cycle", p.cycle, "id", entry.ID)
		return false
	}

	inst := &entry.Inst
	tag := entry.Tag()

	b := &p.lsPool.Buffers[idx]
	b.Clear()
	b.Busy = true
	b.Op = inst.Op
	b.Owner = tag
	b.Dest = inst.Dest
	b.Offset = inst.Offset
	b.Base = readOperand(p.alias, p.regFile, inst.Base)

	if inst.Op == insts.OpSTORE {
		b.Data = readOperand(p.alias, p.regFile, inst.Dest)
	} else {
		p.alias.Set(inst.Dest, tag)
	}

	entry.State = StateIssued
	entry.Unit = p.lsPool.Name(idx)

	p.log.V(1).Info("issue", "cycle", p.cycle, "id", entry.ID,
		"inst", inst.String(), "unit", entry.Unit)

	return true
}

// execute advances every busy slot whose operands are available.
func (p *Pipeline) execute() {
	p.executeStations(p.addPool)
	p.executeStations(p.mulPool)
	p.executeBuffers()
}

func (p *Pipeline) executeStations(pool *StationPool) {
	for i := range pool.Stations {
		rs := &pool.Stations[i]
		if !rs.Busy || rs.Ready || rs.J.Waiting || rs.K.Waiting {
			continue
		}

		entry := p.order.At(int(rs.Owner))

		if rs.Remaining < 0 {
			rs.Remaining = int(p.latencyTable.GetLatency(rs.Op))
			entry.State = StateExecuting
			entry.ExecStartCycle = p.cycle
		}

		if rs.Remaining > 0 {
			rs.Remaining--
		}

		if rs.Remaining > 0 {
			continue
		}

		result, err := p.fpu.Compute(rs.Op, rs.J.Value, rs.K.Value)
		if errors.Is(err, emu.ErrDivideByZero) {
			p.stats.DivideByZero++
			p.log.Info("division by zero, result forced to 0",
				"cycle", p.cycle, "id", entry.ID, "inst", entry.Inst.String())
		} else if err != nil {
			p.log.Error(err, "execute failed", "cycle", p.cycle, "id", entry.ID)
		}

		rs.Result = result
		rs.Ready = true
		entry.ExecEndCycle = p.cycle

		p.log.V(1).Info("execute done", "cycle", p.cycle, "id", entry.ID,
			"unit", pool.Name(i), "result", result)
	}
}

func (p *Pipeline) executeBuffers() {
	for i := range p.lsPool.Buffers {
		b := &p.lsPool.Buffers[i]
		if !b.Busy || b.Ready {
			continue
		}

		entry := p.order.At(int(b.Owner))

		if !b.AddressReady {
			if b.Base.Waiting {
				continue
			}

			b.Address = int64(b.Base.Value + float64(b.Offset))
			b.AddressReady = true
			b.Remaining = int(p.latencyTable.GetLatency(b.Op))

			entry.State = StateExecuting
			entry.ExecStartCycle = p.cycle
			entry.Address = b.Address
			entry.AddressValid = true
		}

		if hazard, found := p.hazardUnit.FindHazard(i, p.lsPool.Buffers, p.order); found {
			p.stats.MemoryStalls++
			p.log.V(1).Info("memory access stalled", "cycle", p.cycle,
				"id", entry.ID, "address", b.Address, "store", int(hazard.Store))
			continue
		}

		if b.Op == insts.OpSTORE && b.Data.Waiting {
			continue
		}

		if b.Remaining > 0 {
			b.Remaining--
		}

		if b.Remaining > 0 {
			continue
		}

		if b.Op == insts.OpLOAD {
			b.Result = p.memory.Read(b.Address)
		}
		b.Ready = true
		entry.ExecEndCycle = p.cycle

		p.log.V(1).Info("memory access done", "cycle", p.cycle, "id", entry.ID,
			"unit", p.lsPool.Name(i), "address", b.Address)
	}
}

// writeback broadcasts at most one result on the common data bus and frees
// its slot.
func (p *Pipeline) writeback() {
	winner, ok := p.cdb.Select(p.addPool, p.mulPool, p.lsPool)
	if !ok {
		return
	}

	entry := p.order.At(int(winner.Producer))
	entry.Value = winner.Value
	entry.HasValue = true

	immediate := p.policy() == latency.ImmediateWriteback

	if winner.IsStore() {
		if immediate {
			p.memory.Write(entry.Address, winner.Value)
		}
	} else {
		if immediate {
			p.publish(winner.Producer, winner.Value)
		}
		fanOut(p.addPool, p.mulPool, p.lsPool, winner.Producer, winner.Value)
	}

	p.freeSlot(winner)

	entry.State = StateWriteResult
	entry.WriteCycle = p.cycle
	p.stats.Broadcasts++

	p.log.V(1).Info("writeback", "cycle", p.cycle, "id", entry.ID,
		"unit", entry.Unit, "value", winner.Value)
}

func (p *Pipeline) freeSlot(b Broadcast) {
	switch b.Family {
	case insts.FamilyAdd:
		p.addPool.Stations[b.Index].Clear()
	case insts.FamilyMul:
		p.mulPool.Stations[b.Index].Clear()
	case insts.FamilyMemory:
		p.lsPool.Buffers[b.Index].Clear()
	}
}

// publish writes value to every register still aliased to producer and
// clears those aliases. Registers re-aliased by a later instruction are left
// untouched.
func (p *Pipeline) publish(producer Tag, value float64) {
	for _, reg := range p.alias.RegistersFor(producer) {
		p.regFile.WriteReg(reg, value)
		p.alias.ClearIf(reg, producer)
	}
}

// commit retires the oldest uncommitted instruction if it has written its
// result. The commit cursor advances by at most one per cycle.
func (p *Pipeline) commit() {
	entry := p.order.Head()
	if entry == nil {
		return
	}

	if entry.State != StateWriteResult {
		p.stats.CommitStalls++
		return
	}

	if !entry.Skipped && p.policy() == latency.CommitGated {
		p.commitGated(entry)
	}

	entry.State = StateCommitted
	entry.CommitCycle = p.cycle
	p.order.Advance()
	p.stats.Committed++

	p.log.V(1).Info("commit", "cycle", p.cycle, "id", entry.ID,
		"inst", entry.Inst.String())
}

func (p *Pipeline) commitGated(entry *Entry) {
	if entry.Inst.Op == insts.OpSTORE {
		p.memory.Write(entry.Address, entry.Value)
		return
	}

	tag := entry.Tag()
	if p.alias.ClearIf(entry.Inst.Dest, tag) {
		p.regFile.WriteReg(entry.Inst.Dest, entry.Value)
	}

	fanOut(p.addPool, p.mulPool, p.lsPool, tag, entry.Value)
}
