package sched_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"ticksched/internal/job"
	"ticksched/internal/sched"
)

var _ = Describe("Sample workload", func() {
	var specs []sched.ProcessSpec

	BeforeEach(func() {
		data, err := os.ReadFile(filepath.Join("..", "..", "workload.txt"))
		Expect(err).NotTo(HaveOccurred())
		specs, err = job.Parse(bytes.NewReader(data))
		Expect(err).NotTo(HaveOccurred())
		Expect(specs).To(HaveLen(4))
	})

	DescribeTable("runs to completion with its I/O",
		func(preemptive bool, selection sched.Selection) {
			cfg := config(3, 4, preemptive)
			cfg.Selection = selection
			s, err := sched.New(cfg, specs)
			Expect(err).NotTo(HaveOccurred())
			events := &eventLog{}
			s.AddSink(events)

			res, err := s.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())

			// P1 io:3, P2 io:2, P4 io:1; each request is done exactly its
			// length after it started
			starts := events.of(sched.StatusIOStart)
			Expect(starts).To(HaveLen(3))
			ioLen := map[int]int{}
			startedAt := map[sched.TaskID]int64{}
			for _, ev := range starts {
				Expect(ev.TaskKind).To(Equal(sched.KindIO))
				ioLen[ev.PID] = ev.Remaining
				startedAt[ev.Task] = ev.Tick
			}
			Expect(ioLen).To(Equal(map[int]int{1: 3, 2: 2, 4: 1}))

			done := events.of(sched.StatusIODone)
			Expect(done).To(HaveLen(3))
			for _, ev := range done {
				Expect(ev.Tick-startedAt[ev.Task]).To(Equal(int64(ioLen[ev.PID])), "P%d", ev.PID)
			}

			Expect(res.Stats.Start).To(BeZero())
			Expect(res.Stats.Completed).To(Equal(4))
			Expect(res.Stats.Instructions).To(Equal(16))
			Expect(res.Exited).To(HaveLen(4))

			var last, total int64
			for _, p := range res.Exited {
				last = max(last, p.CompletedAt)
				total += p.ReadyTime
			}
			Expect(res.Stats.Runtime).To(Equal(last + 1))
			Expect(res.Stats.TotalReady).To(Equal(total))
		},
		Entry("non-preemptive", false, sched.SelectAdjacent),
		Entry("preemptive, adjacent pairs", true, sched.SelectAdjacent),
		Entry("preemptive, global", true, sched.SelectGlobal),
	)
})
