package sched_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"ticksched/internal/sched"
)

var _ = Describe("Scheduler", func() {
	var (
		events *eventLog
	)

	BeforeEach(func() {
		events = &eventLog{}
	})

	build := func(cfg sched.Config, specs ...sched.ProcessSpec) *sched.Scheduler {
		s, err := sched.New(cfg, specs)
		Expect(err).NotTo(HaveOccurred())
		s.AddSink(events)
		return s
	}

	process := func(s *sched.Scheduler, pid int) *sched.Process {
		p, ok := s.Process(pid)
		Expect(ok).To(BeTrue(), "P%d", pid)
		return p
	}

	Context("creation", func() {
		It("rejects an empty workload", func() {
			_, err := sched.New(sched.DefaultConfig(), nil)
			Expect(err).To(MatchError(sched.ErrNoProcesses))
		})

		It("rejects an invalid configuration", func() {
			_, err := sched.New(config(1, 8, false), []sched.ProcessSpec{proc(1, 1, 0, term())})
			Expect(err).To(MatchError(sched.ErrInvalidConfig))
		})

		It("seeds tier B in input order", func() {
			s := build(config(4, 8, false),
				proc(3, 1, 0, term()),
				proc(1, 2, 0, term()),
				proc(2, 3, 0, term()))
			Expect(s.Members(sched.InTierB)).To(Equal([]int{3, 1, 2}))
			Expect(s.Members(sched.InTierA)).To(BeEmpty())
			Expect(process(s, 1).Quantum).To(Equal(8))
		})

		It("starts the clock at the head arrival by default", func() {
			s := build(config(4, 8, false),
				proc(1, 1, 5, term()),
				proc(2, 1, 2, term()))
			Expect(s.Now()).To(Equal(int64(5)))
			Expect(s.Stats().Start).To(Equal(int64(5)))
		})

		It("starts the clock at the earliest arrival on request", func() {
			cfg := config(4, 8, false)
			cfg.ClockStart = sched.StartAtMinArrival
			s := build(cfg,
				proc(1, 1, 5, term()),
				proc(2, 1, 2, term()))
			Expect(s.Now()).To(Equal(int64(2)))
		})
	})

	DescribeTable("single compute process",
		func(quantum int, completedAt int64) {
			s := build(config(4, quantum, false), proc(1, 1, 0, exe(5), term()))
			drain(s, 100)

			p := process(s, 1)
			Expect(p.CompletedAt).To(Equal(completedAt))
			Expect(p.ReadyTime).To(BeZero())
			Expect(p.ExitTier).To(Equal(sched.TierB))
			Expect(s.Members(sched.Exited)).To(Equal([]int{1}))
			Expect(s.Stats().Runtime).To(Equal(completedAt + 1))
		},
		Entry("with a roomy quantum", 10, int64(5)),
		Entry("with one unit to spare", 6, int64(5)),
		// quantum 5 is used up by the compute task, so the terminate task is
		// interrupted once before it can finish
		Entry("with exactly five units the terminator finishes a tick late", 5, int64(6)),
	)

	It("runs a non-preemptive workload in queue order", func() {
		s := build(config(4, 4, false),
			proc(1, 5, 0, exe(3), term()),
			proc(2, 1, 0, exe(3), term()))
		drain(s, 100)

		dispatches := events.of(sched.StatusDispatch)
		Expect(dispatches[0].PID).To(Equal(1))
		Expect(dispatches[0].Tick).To(BeZero())

		Expect(process(s, 1).CompletedAt).To(Equal(int64(3)))
		Expect(process(s, 2).CompletedAt).To(Equal(int64(7)))
		Expect(process(s, 1).ReadyTime).To(BeZero())
		Expect(process(s, 2).ReadyTime).To(Equal(int64(4)))
		Expect(s.Members(sched.Exited)).To(Equal([]int{1, 2}))

		stats := s.Stats()
		Expect(stats.Completed).To(Equal(2))
		Expect(stats.Instructions).To(Equal(4))
		Expect(stats.MaxReady).To(Equal(int64(4)))
		Expect(stats.MinReady()).To(BeZero())
		Expect(stats.AverageReady()).To(BeNumerically("~", 2.0))
	})

	Context("preemptive mode", func() {
		var s *sched.Scheduler

		BeforeEach(func() {
			s = build(config(4, 20, true),
				proc(1, 5, 0, exe(10), term()),
				proc(2, 1, 3, exe(2), term()))
		})

		It("preempts when a better process arrives", func() {
			for i := 0; i < 4; i++ {
				s.Step()
			}

			atThree := events.at(3)
			Expect(atThree).To(HaveLen(2))
			Expect(atThree[0].Kind).To(Equal(sched.StatusPreempt))
			Expect(atThree[0].PID).To(Equal(1))
			Expect(atThree[0].Interrupts).To(Equal(1))
			Expect(atThree[1].Kind).To(Equal(sched.StatusDispatch))
			Expect(atThree[1].PID).To(Equal(2))

			p1 := process(s, 1)
			Expect(p1.Quantum).To(Equal(17))
			Expect(s.Task(p1.Tasks[0]).Remaining).To(Equal(7))
			Expect(s.Task(p1.Tasks[0]).State).To(Equal(sched.StateReady))
			Expect(s.ReadyQueue(sched.TierB)).To(Equal([]sched.TaskID{p1.Tasks[0]}))

			p2 := process(s, 2)
			running, ok := s.Running()
			Expect(ok).To(BeTrue())
			Expect(running).To(Equal(p2.Tasks[0]))
			Expect(s.Task(running).Remaining).To(Equal(1))
		})

		It("lets the preempted task resume and finish", func() {
			drain(s, 100)

			// P1 resumes from the ready queue at tick 5 and is preempted
			// again at tick 6 by P2's terminate task
			preempts := events.of(sched.StatusPreempt)
			Expect(preempts).To(HaveLen(2))
			Expect(preempts[1].Tick).To(Equal(int64(6)))

			p1, p2 := process(s, 1), process(s, 2)
			Expect(p2.CompletedAt).To(Equal(int64(6)))
			Expect(p1.CompletedAt).To(Equal(int64(13)))
			Expect(s.Task(p1.Tasks[0]).Interrupts).To(Equal(2))
			Expect(p1.ExitTier).To(Equal(sched.TierB))
			Expect(p1.ReadyTime).To(Equal(int64(3)))
			Expect(p2.ReadyTime).To(Equal(int64(1)))
			Expect(s.Members(sched.Exited)).To(Equal([]int{2, 1}))
		})
	})

	DescribeTable("preemptive selection",
		func(selection sched.Selection, pid int) {
			cfg := config(4, 8, true)
			cfg.Selection = selection
			s := build(cfg,
				proc(1, 5, 0, exe(3), term()),
				proc(2, 4, 0, exe(3), term()),
				proc(3, 1, 0, exe(3), term()))
			s.Step()

			first := events.of(sched.StatusDispatch)[0]
			Expect(first.Tick).To(BeZero())
			Expect(first.PID).To(Equal(pid))
		},
		Entry("compares neighbours only", sched.SelectAdjacent, 2),
		Entry("scans the whole queue", sched.SelectGlobal, 3),
	)

	It("gives ties to the neighbour in adjacent mode", func() {
		s := build(config(4, 8, true),
			proc(1, 2, 0, exe(1), term()),
			proc(2, 2, 0, exe(1), term()))
		s.Step()
		Expect(events.of(sched.StatusDispatch)[0].PID).To(Equal(2))
	})

	Context("promotion", func() {
		It("promotes after consecutive quantum-surviving completions", func() {
			s := build(config(4, 10, false), proc(1, 1, 0, exe(1), exe(1), exe(1), exe(5), term()))
			for i := 0; i < 3; i++ {
				s.Step()
			}

			p := process(s, 1)
			Expect(s.Members(sched.InTierA)).To(Equal([]int{1}))
			Expect(s.Members(sched.InTierB)).To(BeEmpty())
			Expect(p.Location).To(Equal(sched.InTierA))
			Expect(p.Quantum).To(Equal(4))
			Expect(p.Completions).To(BeZero())

			promotions := events.of(sched.StatusPromote)
			Expect(promotions).To(HaveLen(1))
			Expect(promotions[0].Tick).To(Equal(int64(2)))

			drain(s, 100)
			Expect(p.ExitTier).To(Equal(sched.TierA))
			Expect(p.CompletedAt).To(Equal(int64(9)))
		})

		It("promotes a task interrupted three times and moves it to ready A", func() {
			s := build(config(3, 2, false), proc(1, 1, 0, exe(10), term()))
			for i := 0; i < 9; i++ {
				s.Step()
			}

			p := process(s, 1)
			t := s.Task(p.Tasks[0])
			Expect(events.of(sched.StatusInterrupt)).To(HaveLen(3))
			Expect(t.Interrupts).To(Equal(3))
			Expect(t.Remaining).To(Equal(4))
			Expect(p.Location).To(Equal(sched.InTierA))
			Expect(p.Quantum).To(Equal(3))
			Expect(s.ReadyQueue(sched.TierA)).To(Equal([]sched.TaskID{t.ID}))
			Expect(s.ReadyQueue(sched.TierB)).To(BeEmpty())
			_, busy := s.Running()
			Expect(busy).To(BeFalse())

			drain(s, 100)
			Expect(p.CompletedAt).To(Equal(int64(14)))
			Expect(p.ExitTier).To(Equal(sched.TierA))
			Expect(p.Interrupts).To(Equal(4))
		})

		It("promotes while an I/O request is in flight", func() {
			s := build(config(4, 10, false), proc(1, 1, 0, ioReq(1), ioReq(1), ioReq(1), term()))
			for i := 0; i < 3; i++ {
				s.Step()
			}

			p := process(s, 1)
			Expect(p.Location).To(Equal(sched.InTierA))
			Expect(s.InFlightIO()).To(Equal([]sched.TaskID{p.Tasks[2]}))

			drain(s, 10)
			Expect(p.CompletedAt).To(Equal(int64(3)))
			Expect(p.ExitTier).To(Equal(sched.TierA))
			Expect(s.Stats().Instructions).To(Equal(4))
		})
	})

	It("completes a compute task when remaining time and quantum run out together", func() {
		s := build(config(4, 2, false), proc(1, 1, 0, exe(2), term()))
		s.Step()
		s.Step()

		p := process(s, 1)
		first := s.Task(p.Tasks[0])
		Expect(first.Completed).To(BeTrue())
		Expect(first.Interrupts).To(BeZero())
		Expect(p.Completions).To(BeZero())
		Expect(events.of(sched.StatusTaskDone)).To(HaveLen(1))

		drain(s, 10)
		Expect(s.Task(p.Tasks[1]).Interrupts).To(Equal(1))
		Expect(p.CompletedAt).To(Equal(int64(3)))
	})

	It("ages I/O while another process holds the CPU", func() {
		s := build(config(4, 8, false),
			proc(1, 1, 0, ioReq(2), exe(1), term()),
			proc(2, 2, 0, exe(4), term()))
		for i := 0; i < 3; i++ {
			s.Step()
		}

		done := events.of(sched.StatusIODone)
		Expect(done).To(HaveLen(1))
		Expect(done[0].PID).To(Equal(1))
		Expect(done[0].Tick).To(Equal(int64(2)))
		Expect(s.InFlightIO()).To(BeEmpty())

		running, ok := s.Running()
		Expect(ok).To(BeTrue())
		Expect(s.Task(running).Owner).To(Equal(process(s, 2).ID))
		Expect(s.Task(running).Remaining).To(Equal(2))
	})

	It("picks the next task on the tick after a release", func() {
		s := build(config(4, 8, false),
			proc(1, 1, 0, ioReq(1), exe(1), term()),
			proc(2, 1, 0, exe(2), term()))
		drain(s, 20)

		// P1's I/O is aged to done at tick 1 before the idle CPU looks for
		// work, so P1 keeps its place ahead of P2
		done := events.of(sched.StatusIODone)
		Expect(done).To(HaveLen(1))
		Expect(done[0].Tick).To(Equal(int64(1)))

		type dispatch struct {
			tick int64
			pid  int
		}
		var got []dispatch
		for _, ev := range events.of(sched.StatusDispatch) {
			got = append(got, dispatch{ev.Tick, ev.PID})
		}
		Expect(got).To(Equal([]dispatch{{0, 1}, {1, 1}, {2, 1}, {3, 2}, {5, 2}}))

		p1, p2 := process(s, 1), process(s, 2)
		Expect(p1.CompletedAt).To(Equal(int64(2)))
		Expect(p1.ReadyTime).To(BeZero())
		Expect(p2.CompletedAt).To(Equal(int64(5)))
		Expect(p2.ReadyTime).To(Equal(int64(3)))
	})

	It("reports idle ticks before the first arrival", func() {
		cfg := config(4, 8, false)
		cfg.ClockStart = sched.StartAtMinArrival
		s := build(cfg,
			proc(1, 1, 3, term()),
			proc(2, 1, 1, term()))
		drain(s, 10)

		idle := events.of(sched.StatusIdle)
		Expect(idle).To(HaveLen(1))
		Expect(idle[0].Tick).To(Equal(int64(2)))
		Expect(process(s, 2).CompletedAt).To(Equal(int64(1)))
		Expect(process(s, 1).CompletedAt).To(Equal(int64(3)))
	})

	DescribeTable("keeps its books consistent on a mixed workload",
		func(preemptive bool, selection sched.Selection) {
			cfg := config(3, 4, preemptive)
			cfg.Selection = selection
			specs := []sched.ProcessSpec{
				proc(1, 4, 0, exe(3), ioReq(2), exe(4), ioReq(1), exe(2), term()),
				proc(2, 2, 1, ioReq(3), exe(6), term()),
				proc(3, 6, 2, exe(1), exe(1), exe(1), ioReq(1), exe(8), term()),
				proc(4, 1, 5, exe(7), ioReq(2), term()),
				proc(5, 3, 0, exe(12), term()),
			}
			s := build(cfg, specs...)

			ready := map[int]int64{}
			for i := 0; i < 1000 && !s.Done(); i++ {
				before := s.Now()
				Expect(func() { s.Step() }).NotTo(Panic())
				Expect(s.Now()).To(Equal(before + 1))

				members := append(append(s.Members(sched.InTierA), s.Members(sched.InTierB)...), s.Members(sched.Exited)...)
				Expect(members).To(ConsistOf(1, 2, 3, 4, 5))

				for _, spec := range specs {
					p := process(s, spec.PID)
					Expect(p.ReadyTime).To(BeNumerically(">=", ready[spec.PID]))
					ready[spec.PID] = p.ReadyTime
				}
			}
			Expect(s.Done()).To(BeTrue())

			res := s.Result()
			Expect(res.Exited).To(HaveLen(5))
			Expect(res.Stats.Completed).To(Equal(5))
			for _, p := range res.Exited {
				Expect(p.Location).To(Equal(sched.Exited))
				for _, id := range p.Tasks {
					Expect(s.Task(id).Completed).To(BeTrue(), "P%d task %d", p.PID, id)
				}
			}
			Expect(res.Stats.Instructions).To(Equal(20))
		},
		Entry("non-preemptive", false, sched.SelectAdjacent),
		Entry("preemptive, adjacent pairs", true, sched.SelectAdjacent),
		Entry("preemptive, global", true, sched.SelectGlobal),
	)

	Context("Run", func() {
		specs := func() []sched.ProcessSpec {
			return []sched.ProcessSpec{
				proc(1, 5, 0, exe(3), ioReq(2), term()),
				proc(2, 1, 0, exe(3), term()),
			}
		}

		It("matches a stepped run and closes its sinks", func() {
			stepped := build(config(4, 8, false), specs()...)
			drain(stepped, 100)

			ran, err := sched.New(config(4, 8, false), specs())
			Expect(err).NotTo(HaveOccurred())
			ranEvents := &eventLog{}
			ran.AddSink(ranEvents)

			res, err := ran.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(res).To(Equal(stepped.Result()))
			Expect(ranEvents.events).To(Equal(events.events))
			Expect(ranEvents.closed).To(BeTrue())
		})

		It("stops when the context is cancelled", func() {
			s := build(config(4, 8, false), specs()...)
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := s.Run(ctx)
			Expect(err).To(MatchError(context.Canceled))
			Expect(events.closed).To(BeTrue())
		})

		It("stops at the tick limit", func() {
			cfg := config(4, 8, false)
			cfg.MaxTicks = 3
			s := build(cfg, specs()...)

			res, err := s.Run(context.Background())
			Expect(err).To(MatchError(sched.ErrTickLimit))
			Expect(res.Stats.Runtime).To(Equal(int64(3)))
		})

		It("writes a CSV event log", func() {
			path := filepath.Join(GinkgoT().TempDir(), "events.csv")
			s := build(config(4, 8, false), specs()...)
			Expect(s.EnableCSVLogging(path)).To(Succeed())

			_, err := s.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			Expect(lines[0]).To(Equal("tick,event,pid,task,kind,tier,priority,quantum,remaining,interrupts"))
			Expect(lines).To(HaveLen(len(events.events) + 1))
			Expect(lines[1]).To(HavePrefix("0,Dispatch,1,0,exe,B,5,8,3,0"))
			Expect(string(data)).To(ContainSubstring(",Finish,2,"))
		})
	})

	Context("with a mocked sink", func() {
		var (
			mockCtrl *gomock.Controller
			sink     *MockEventSink
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			sink = NewMockEventSink(mockCtrl)
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("delivers one promotion event", func() {
			s, err := sched.New(config(4, 10, false),
				[]sched.ProcessSpec{proc(1, 1, 0, exe(1), exe(1), exe(1), term())})
			Expect(err).NotTo(HaveOccurred())
			s.AddSink(sink)

			sink.EXPECT().
				HandleEvent(gomock.Cond(func(x any) bool {
					ev, ok := x.(sched.StatusEvent)
					return ok && ev.Kind == sched.StatusPromote
				})).
				DoAndReturn(func(ev sched.StatusEvent) error {
					Expect(ev.PID).To(Equal(1))
					Expect(ev.Tier).To(Equal(sched.TierA))
					Expect(ev.Quantum).To(Equal(4))
					return nil
				})
			sink.EXPECT().HandleEvent(gomock.Any()).Return(nil).AnyTimes()
			sink.EXPECT().Close().Return(nil)

			_, err = s.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
		})

		It("keeps running when a sink fails", func() {
			s, err := sched.New(config(4, 8, false),
				[]sched.ProcessSpec{proc(1, 1, 0, exe(2), term())})
			Expect(err).NotTo(HaveOccurred())
			s.AddSink(sink)

			sink.EXPECT().HandleEvent(gomock.Any()).Return(errors.New("disk full")).AnyTimes()
			sink.EXPECT().Close().Return(nil)

			res, err := s.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Exited).To(HaveLen(1))
		})

		It("reports close failures", func() {
			s, err := sched.New(config(4, 8, false),
				[]sched.ProcessSpec{proc(1, 1, 0, term())})
			Expect(err).NotTo(HaveOccurred())
			s.AddSink(sink)

			sink.EXPECT().HandleEvent(gomock.Any()).Return(nil).AnyTimes()
			sink.EXPECT().Close().Return(errors.New("flush failed"))

			_, err = s.Run(context.Background())
			Expect(err).To(MatchError(ContainSubstring("flush failed")))
		})
	})
})
