package pipeline_test

import (
	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tomasim/emu"
	"github.com/sarchlab/tomasim/loader"
	"github.com/sarchlab/tomasim/timing/latency"
	"github.com/sarchlab/tomasim/timing/pipeline"
)

const mixedProgram = `
LOAD F6,1000(F10)
MUL F0,F2,F4
SUB F8,F6,F2
DIV F10,F0,F6
ADD F6,F8,F2
STORE F6,4(F1)
LOAD F7,4(F1)
`

func newPipeline(config *latency.TimingConfig, src string) *pipeline.Pipeline {
	prog := loader.ParseString(src)

	pipe := pipeline.NewPipeline(
		emu.NewRegFile(config.Registers),
		emu.NewMemory(config.Memory),
		pipeline.WithLatencyTable(latency.NewTableWithConfig(config)),
		pipeline.WithLogger(GinkgoLogr),
	)
	pipe.LoadProgram(prog.Instructions)
	return pipe
}

var _ = Describe("Pipeline", func() {
	var config *latency.TimingConfig

	BeforeEach(func() {
		config = latency.DefaultTimingConfig()
	})

	Describe("NewPipeline", func() {
		It("should start empty and done", func() {
			pipe := pipeline.NewPipeline(emu.NewRegFile(nil), emu.NewMemory(nil))
			Expect(pipe.Done()).To(BeTrue())
			Expect(pipe.PC()).To(Equal(0))
			Expect(pipe.Cycle()).To(BeZero())
			Expect(pipe.Run()).To(Succeed())
			Expect(pipe.Cycle()).To(BeZero())
		})

		It("should size pools from the latency table", func() {
			config.AddStations = 1
			config.MulStations = 4
			config.LoadStoreBuffers = 2
			snap := newPipeline(config, "").Snapshot()

			Expect(snap.AddStations).To(HaveLen(1))
			Expect(snap.MulStations).To(HaveLen(4))
			Expect(snap.Buffers).To(HaveLen(2))
			Expect(snap.AddStations[0].Name).To(Equal("Add1"))
			Expect(snap.MulStations[3].Name).To(Equal("Mult4"))
			Expect(snap.Buffers[1].Name).To(Equal("LS2"))
		})
	})

	Describe("Dependent arithmetic", func() {
		var pipe *pipeline.Pipeline

		BeforeEach(func() {
			pipe = newPipeline(config, "ADD F9,F1,F2\nMUL F10,F9,F3")
			Expect(pipe.Run()).To(Succeed())
		})

		It("should compute the results", func() {
			Expect(pipe.RegFile().ReadReg("F9")).To(Equal(23.0))
			Expect(pipe.RegFile().ReadReg("F10")).To(Equal(299.0))
		})

		It("should take issue, latency and broadcast cycles", func() {
			Expect(pipe.Cycle()).To(Equal(uint64(15)))
			Expect(pipe.Stats().Cycles).To(Equal(uint64(15)))
		})

		It("should record the ADD timeline", func() {
			add := pipe.Entries()[0]
			Expect(add.IssueCycle).To(Equal(uint64(1)))
			Expect(add.ExecStartCycle).To(Equal(uint64(2)))
			Expect(add.ExecEndCycle).To(Equal(uint64(3)))
			Expect(add.WriteCycle).To(Equal(uint64(4)))
			Expect(add.CommitCycle).To(Equal(uint64(5)))
			Expect(add.Unit).To(Equal("Add1"))
		})

		It("should start the MUL in the cycle its operand is broadcast", func() {
			add, mul := pipe.Entries()[0], pipe.Entries()[1]
			Expect(mul.IssueCycle).To(Equal(uint64(2)))
			Expect(mul.ExecStartCycle).To(Equal(add.WriteCycle))
			Expect(mul.ExecEndCycle).To(Equal(uint64(13)))
			Expect(mul.WriteCycle).To(Equal(uint64(14)))
			Expect(mul.CommitCycle).To(Equal(uint64(15)))
			Expect(mul.Unit).To(Equal("Mult1"))
		})

		It("should leave no aliases behind", func() {
			Expect(pipe.Snapshot().Aliases).To(BeEmpty())
		})

		It("should count events", func() {
			stats := pipe.Stats()
			Expect(stats.Issued).To(Equal(uint64(2)))
			Expect(stats.Committed).To(Equal(uint64(2)))
			Expect(stats.Broadcasts).To(Equal(uint64(2)))
			Expect(stats.CPI()).To(Equal(7.5))
			Expect(stats.IPC()).To(BeNumerically("~", 2.0/15.0))
		})
	})

	Describe("Structural stall", func() {
		It("should hold the PC until a station frees", func() {
			pipe := newPipeline(config, `
DIV F1,F2,F3
ADD F4,F1,F0
ADD F5,F1,F0
ADD F6,F1,F0
ADD F7,F2,F3`)

			_, err := pipe.RunCycles(4)
			Expect(err).NotTo(HaveOccurred())
			Expect(pipe.PC()).To(Equal(4))

			_, err = pipe.RunCycles(39)
			Expect(err).NotTo(HaveOccurred())
			Expect(pipe.Cycle()).To(Equal(uint64(43)))
			Expect(pipe.PC()).To(Equal(4))

			Expect(pipe.Run()).To(Succeed())

			entries := pipe.Entries()
			Expect(entries[0].WriteCycle).To(Equal(uint64(42)))
			Expect(entries[1].WriteCycle).To(Equal(uint64(44)))
			Expect(entries[4].IssueCycle).To(Equal(entries[1].WriteCycle))
			Expect(entries[4].Unit).To(Equal("Add1"))
			Expect(pipe.Stats().StructuralStalls).To(Equal(uint64(39)))
			Expect(pipe.RegFile().ReadReg("F7")).To(Equal(25.0))
		})
	})

	Describe("Slot reuse before commit", func() {
		It("should resolve a consumer placed in its producer's station", func() {
			config.AddStations = 1
			pipe := newPipeline(config, "ADD F9,F1,F2\nADD F10,F9,F3")
			Expect(pipe.Run()).To(Succeed())

			first, second := pipe.Entries()[0], pipe.Entries()[1]
			Expect(second.IssueCycle).To(Equal(first.WriteCycle))
			Expect(second.Unit).To(Equal(first.Unit))
			Expect(second.ExecStartCycle).To(Equal(first.CommitCycle))
			Expect(pipe.RegFile().ReadReg("F10")).To(Equal(36.0))
		})
	})

	Describe("Memory ordering", func() {
		const program = "STORE F2,0(F1)\nLOAD F3,0(F1)"

		It("should delay the load until the store commits", func() {
			pipe := newPipeline(config, program)
			Expect(pipe.Run()).To(Succeed())

			store, load := pipe.Entries()[0], pipe.Entries()[1]
			Expect(store.Address).To(Equal(int64(11)))
			Expect(store.WriteCycle).To(Equal(uint64(4)))
			Expect(store.CommitCycle).To(Equal(uint64(5)))
			Expect(load.ExecStartCycle).To(Equal(uint64(3)))
			Expect(load.ExecEndCycle).To(Equal(uint64(6)))
			Expect(load.CommitCycle).To(Equal(uint64(8)))

			Expect(pipe.Memory().Read(11)).To(Equal(12.0))
			Expect(pipe.RegFile().ReadReg("F3")).To(Equal(12.0))
			Expect(pipe.Stats().MemoryStalls).To(Equal(uint64(2)))
		})

		It("should write memory at writeback under immediate writeback", func() {
			config.CommitPolicy = latency.ImmediateWriteback
			pipe := newPipeline(config, program)

			_, err := pipe.RunCycles(4)
			Expect(err).NotTo(HaveOccurred())
			Expect(pipe.Memory().Read(11)).To(Equal(12.0))

			Expect(pipe.Run()).To(Succeed())
			Expect(pipe.RegFile().ReadReg("F3")).To(Equal(12.0))
			Expect(pipe.Entries()[1].ExecEndCycle).To(Equal(uint64(5)))
		})

		It("should not delay accesses to different addresses", func() {
			pipe := newPipeline(config, "STORE F2,0(F1)\nLOAD F3,994(F0)")
			Expect(pipe.Run()).To(Succeed())

			Expect(pipe.Stats().MemoryStalls).To(BeZero())
			Expect(pipe.RegFile().ReadReg("F3")).To(Equal(60.0))
		})

		DescribeTable("should let a load feed a younger store to its address",
			func(policy latency.CommitPolicy) {
				config.CommitPolicy = policy
				pipe := newPipeline(config, "MUL F5,F0,F1\nLOAD F3,0(F5)\nSTORE F3,100(F0)")
				Expect(pipe.Run()).To(Succeed())

				load, store := pipe.Entries()[1], pipe.Entries()[2]
				Expect(load.Address).To(Equal(int64(110)))
				Expect(store.Address).To(Equal(int64(110)))
				Expect(store.WriteCycle).To(BeNumerically(">", load.WriteCycle))
				Expect(pipe.RegFile().ReadReg("F3")).To(BeZero())
				Expect(pipe.Memory().Read(110)).To(BeZero())
			},
			Entry("commit-gated", latency.CommitGated),
			Entry("immediate writeback", latency.ImmediateWriteback),
		)

		It("should read unseeded memory as zero", func() {
			pipe := newPipeline(config, "LOAD F3,7(F0)")
			Expect(pipe.Run()).To(Succeed())
			Expect(pipe.RegFile().ReadReg("F3")).To(BeZero())
		})
	})

	Describe("Write after write", func() {
		const program = "MUL F2,F0,F1\nADD F5,F2,F0\nADD F2,F3,F4"

		DescribeTable("should keep the youngest value",
			func(policy latency.CommitPolicy) {
				config.CommitPolicy = policy
				pipe := newPipeline(config, program)
				Expect(pipe.Run()).To(Succeed())

				Expect(pipe.RegFile().ReadReg("F2")).To(Equal(27.0))
				Expect(pipe.RegFile().ReadReg("F5")).To(Equal(120.0))
			},
			Entry("commit-gated", latency.CommitGated),
			Entry("immediate writeback", latency.ImmediateWriteback),
		)

		It("should not expose a result before commit", func() {
			pipe := newPipeline(config, program)
			_, err := pipe.RunCycles(6)
			Expect(err).NotTo(HaveOccurred())

			Expect(pipe.Entries()[2].WriteCycle).To(Equal(uint64(6)))
			Expect(pipe.RegFile().ReadReg("F2")).To(Equal(12.0))
			Expect(pipe.Snapshot().Aliases).To(ContainElement(
				pipeline.AliasView{Register: "F2", Producer: 2, Unit: "Add2"}))
		})
	})

	Describe("Division by zero", func() {
		It("should produce zero and keep running", func() {
			pipe := newPipeline(config, "SUB F0,F1,F1\nDIV F9,F2,F0\nADD F10,F9,F1")
			Expect(pipe.Run()).To(Succeed())

			Expect(pipe.RegFile().ReadReg("F9")).To(BeZero())
			Expect(pipe.RegFile().ReadReg("F10")).To(Equal(11.0))
			Expect(pipe.Stats().DivideByZero).To(Equal(uint64(1)))
		})
	})

	Describe("Unknown opcode", func() {
		It("should skip the instruction without deadlock", func() {
			pipe := newPipeline(config, "NOP F1,F2,F3\nADD F9,F1,F2")
			Expect(pipe.Run()).To(Succeed())

			skipped := pipe.Entries()[0]
			Expect(skipped.Skipped).To(BeTrue())
			Expect(skipped.IssueCycle).To(Equal(uint64(1)))
			Expect(skipped.CommitCycle).To(Equal(uint64(2)))
			Expect(pipe.RegFile().ReadReg("F1")).To(Equal(11.0))
			Expect(pipe.RegFile().ReadReg("F9")).To(Equal(23.0))
			Expect(pipe.Cycle()).To(Equal(uint64(6)))
		})
	})

	Describe("Unknown registers", func() {
		It("should read as zero", func() {
			pipe := newPipeline(config, "ADD F20,F30,F1")
			Expect(pipe.Run()).To(Succeed())
			Expect(pipe.RegFile().ReadReg("F20")).To(Equal(11.0))
		})
	})

	Describe("Cycle limit", func() {
		It("should abort an unfinished run", func() {
			config.MaxCycles = 5
			pipe := newPipeline(config, "MUL F9,F1,F2")

			err := pipe.Run()
			Expect(err).To(MatchError(pipeline.ErrCycleLimit))
			Expect(pipe.Cycle()).To(Equal(uint64(5)))
			Expect(pipe.Done()).To(BeFalse())

			Expect(pipe.Step()).To(MatchError(pipeline.ErrCycleLimit))
			Expect(pipe.Cycle()).To(Equal(uint64(5)))
			Expect(pipe.Err()).To(HaveOccurred())
		})

		It("should accept a run finishing on the last cycle", func() {
			config.MaxCycles = 15
			pipe := newPipeline(config, "ADD F9,F1,F2\nMUL F10,F9,F3")
			Expect(pipe.Run()).To(Succeed())
		})
	})

	Describe("Mixed program", func() {
		DescribeTable("should produce the sequential result",
			func(policy latency.CommitPolicy) {
				config.CommitPolicy = policy
				pipe := newPipeline(config, mixedProgram)
				Expect(pipe.Run()).To(Succeed())

				regs := pipe.RegFile()
				Expect(regs.ReadReg("F0")).To(Equal(168.0))
				Expect(regs.ReadReg("F8")).To(Equal(38.0))
				Expect(regs.ReadReg("F10")).To(BeNumerically("~", 3.36, 1e-9))
				Expect(regs.ReadReg("F6")).To(Equal(50.0))
				Expect(regs.ReadReg("F7")).To(Equal(50.0))
				Expect(pipe.Memory().Read(15)).To(Equal(50.0))
			},
			Entry("commit-gated", latency.CommitGated),
			Entry("immediate writeback", latency.ImmediateWriteback),
		)

		It("should broadcast at most one result per cycle", func() {
			pipe := newPipeline(config, mixedProgram)
			Expect(pipe.Run()).To(Succeed())

			seen := map[uint64]bool{}
			for _, e := range pipe.Entries() {
				Expect(seen[e.WriteCycle]).To(BeFalse(), "cycle %d", e.WriteCycle)
				seen[e.WriteCycle] = true
			}
		})

		It("should commit in program order, one per cycle", func() {
			pipe := newPipeline(config, mixedProgram)
			Expect(pipe.Run()).To(Succeed())

			var last uint64
			for _, e := range pipe.Entries() {
				Expect(e.State).To(Equal(pipeline.StateCommitted))
				Expect(e.CommitCycle).To(BeNumerically(">", last))
				last = e.CommitCycle
			}
		})

		It("should order the timestamps of every instruction", func() {
			pipe := newPipeline(config, mixedProgram)
			Expect(pipe.Run()).To(Succeed())

			for _, e := range pipe.Entries() {
				Expect(e.IssueCycle).To(BeNumerically("<", e.ExecStartCycle))
				Expect(e.ExecStartCycle).To(BeNumerically("<=", e.ExecEndCycle))
				Expect(e.ExecEndCycle).To(BeNumerically("<", e.WriteCycle))
				Expect(e.WriteCycle).To(BeNumerically("<", e.CommitCycle))
			}
		})

		It("should never commit more than it issued", func() {
			pipe := newPipeline(config, mixedProgram)
			for !pipe.Done() {
				Expect(pipe.Step()).To(Succeed())
				stats := pipe.Stats()
				Expect(stats.Committed).To(BeNumerically("<=", stats.Issued))
				Expect(pipe.PC()).To(BeNumerically("<=", 7))
			}
		})

		It("should be deterministic", func() {
			run := func() []pipeline.Snapshot {
				pipe := newPipeline(config, mixedProgram)
				var snaps []pipeline.Snapshot
				for !pipe.Done() {
					Expect(pipe.Step()).To(Succeed())
					snaps = append(snaps, pipe.Snapshot())
				}
				return snaps
			}

			Expect(cmp.Diff(run(), run())).To(BeEmpty())
		})
	})
})
