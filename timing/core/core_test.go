package core_test

import (
	"os"
	"path/filepath"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tomasim/loader"
	"github.com/sarchlab/tomasim/timing/core"
	"github.com/sarchlab/tomasim/timing/latency"
	"github.com/sarchlab/tomasim/timing/pipeline"
)

var _ = Describe("Simulator", func() {
	var (
		config *latency.TimingConfig
		s      *core.Simulator
	)

	newSimulator := func(opts ...core.Option) *core.Simulator {
		opts = append([]core.Option{
			core.WithConfig(config),
			core.WithLogger(GinkgoLogr),
		}, opts...)
		sim, err := core.NewSimulator("Core", opts...)
		Expect(err).NotTo(HaveOccurred())
		return sim
	}

	BeforeEach(func() {
		config = latency.DefaultTimingConfig()
	})

	It("should reject an invalid config", func() {
		config.AddStations = 0
		_, err := core.NewSimulator("Core", core.WithConfig(config))
		Expect(err).To(MatchError(ContainSubstring("invalid timing config")))
	})

	DescribeTable("should reject names akita cannot accept",
		func(name string) {
			_, err := core.NewSimulator(name, core.WithConfig(config))
			Expect(err).To(MatchError(core.ErrInvalidName))
			Expect(err.Error()).To(ContainSubstring(name))
		},
		Entry("lower case", "prog"),
		Entry("file name", "Prog.txt"),
		Entry("empty", ""),
		Entry("dash", "My-Core"),
	)

	It("should accept hierarchical names", func() {
		_, err := core.NewSimulator("Batch.Core[2]", core.WithConfig(config))
		Expect(err).NotTo(HaveOccurred())
	})

	It("should start with nothing to run", func() {
		s = newSimulator()
		Expect(s.Done()).To(BeTrue())
		Expect(s.RunToCompletion()).To(Succeed())
		Expect(s.Cycle()).To(BeZero())
	})

	Describe("RunToCompletion", func() {
		BeforeEach(func() {
			s = newSimulator()
			s.LoadProgram(loader.ParseString("ADD F9,F1,F2\nMUL F10,F9,F3"))
		})

		It("should tick the pipeline until every instruction commits", func() {
			Expect(s.RunToCompletion()).To(Succeed())
			Expect(s.Done()).To(BeTrue())
			Expect(s.Cycle()).To(Equal(uint64(15)))

			snap := s.Snapshot()
			Expect(snap.Registers).To(HaveKeyWithValue("F9", 23.0))
			Expect(snap.Registers).To(HaveKeyWithValue("F10", 299.0))
			Expect(snap.Committed).To(Equal(2))
			Expect(s.Stats().Committed).To(Equal(uint64(2)))
		})

		It("should match stepping cycle by cycle", func() {
			stepped := newSimulator()
			stepped.LoadProgram(loader.ParseString("ADD F9,F1,F2\nMUL F10,F9,F3"))
			for !stepped.Done() {
				Expect(stepped.AdvanceOneCycle()).To(Succeed())
			}

			Expect(s.RunToCompletion()).To(Succeed())
			Expect(cmp.Diff(stepped.Snapshot(), s.Snapshot())).To(BeEmpty())
		})

		It("should reset state when a program is reloaded", func() {
			Expect(s.RunToCompletion()).To(Succeed())

			s.LoadProgram(loader.ParseString("SUB F9,F9,F1"))
			Expect(s.Cycle()).To(BeZero())
			Expect(s.RunToCompletion()).To(Succeed())
			Expect(s.Snapshot().Registers).To(HaveKeyWithValue("F9", -11.0))
		})
	})

	Describe("Cycle hooks", func() {
		It("should observe every cycle", func() {
			var cycles []uint64
			s = newSimulator(core.WithCycleHook(func(snap pipeline.Snapshot) {
				cycles = append(cycles, snap.Cycle)
			}))
			s.LoadProgram(loader.ParseString("ADD F9,F1,F2"))

			Expect(s.RunToCompletion()).To(Succeed())
			Expect(cycles).To(Equal([]uint64{1, 2, 3, 4, 5}))
		})
	})

	Describe("Cycle limit", func() {
		It("should stop the engine and report the limit", func() {
			config.MaxCycles = 20
			s = newSimulator()
			s.LoadProgram(loader.ParseString("DIV F9,F1,F2"))

			err := s.RunToCompletion()
			Expect(err).To(MatchError(pipeline.ErrCycleLimit))
			Expect(s.Err()).To(MatchError(pipeline.ErrCycleLimit))
			Expect(s.Cycle()).To(Equal(uint64(20)))
			Expect(s.Done()).To(BeFalse())
			Expect(s.AdvanceOneCycle()).To(MatchError(pipeline.ErrCycleLimit))
		})
	})

	Describe("Load", func() {
		var tempDir string

		BeforeEach(func() {
			var err error
			tempDir, err = os.MkdirTemp("", "core-test")
			Expect(err).NotTo(HaveOccurred())
			s = newSimulator()
		})

		AfterEach(func() {
			_ = os.RemoveAll(tempDir)
		})

		It("should load and run a program file", func() {
			path := filepath.Join(tempDir, "prog.txt")
			src := "# store then reload\nSTORE F2,0(F1)\nbogus line\nLOAD F3,0(F1)\n"
			Expect(os.WriteFile(path, []byte(src), 0644)).To(Succeed())

			Expect(s.Load(path)).To(Succeed())
			Expect(s.Program().Instructions).To(HaveLen(2))
			Expect(s.Program().Diagnostics).To(HaveLen(1))

			Expect(s.RunToCompletion()).To(Succeed())
			snap := s.Snapshot()
			Expect(snap.Memory).To(HaveKeyWithValue(int64(11), 12.0))
			Expect(snap.Registers).To(HaveKeyWithValue("F3", 12.0))
		})

		It("should fail on a missing file", func() {
			err := s.Load(filepath.Join(tempDir, "missing.txt"))
			Expect(err).To(MatchError(os.ErrNotExist))
		})
	})

	It("should not share config maps with the caller", func() {
		s = newSimulator()
		config.Registers["F1"] = 100
		s.LoadProgram(loader.ParseString("ADD F9,F1,F2"))
		Expect(s.RunToCompletion()).To(Succeed())
		Expect(s.Snapshot().Registers).To(HaveKeyWithValue("F9", 23.0))
	})
})
