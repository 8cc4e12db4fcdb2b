// Command greensched runs the scheduler demos: strict-priority dispatch,
// mutex hand-off with priority elevation, and the matrix workload on green
// threads versus OS threads.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"greensched/sched"
	"greensched/workload"
)

func main() {
	var (
		demo    = flag.String("demo", "all", "demo to run: priority, mutex, matrix or all")
		size    = flag.Int("n", 120, "matrix size for the matrix demo")
		parts   = flag.Int("parts", 4, "row ranges (workers) for the matrix demo")
		quantum = flag.Duration("quantum", sched.DefaultQuantum, "preemption quantum, 0 disables it")
		verbose = flag.Bool("v", false, "log every dispatch")
	)
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	newSched := func() *sched.Scheduler {
		s := sched.New(sched.WithQuantum(*quantum), sched.WithLogger(logger))
		if err := s.WatchSignals(context.Background()); err != nil {
			logger.WithError(err).Warn("deadlock reports on SIGQUIT disabled")
		}
		return s
	}

	var err error
	switch *demo {
	case "priority":
		err = priorityDemo(newSched())
	case "mutex":
		err = mutexDemo(newSched())
	case "matrix":
		err = matrixDemo(newSched(), *size, *parts)
	case "all":
		if err = priorityDemo(newSched()); err == nil {
			if err = mutexDemo(newSched()); err == nil {
				err = matrixDemo(newSched(), *size, *parts)
			}
		}
	default:
		err = fmt.Errorf("unknown demo %q", *demo)
	}
	if err != nil {
		logger.WithError(err).Error("demo failed")
		os.Exit(1)
	}
}

// priorityDemo starts one thread per priority plus a MEDIUM "main" thread
// and shows how many times each was dispatched.
func priorityDemo(s *sched.Scheduler) error {
	defer s.Close()
	fmt.Println("=== Priority scheduling ===")

	counter := func(t *sched.Thread, arg any) any {
		n := arg.(int)
		for i := 0; i < n; i++ {
			t.Yield()
		}
		return n
	}
	labels := map[sched.TID]string{}
	for _, p := range []sched.Priority{sched.Low, sched.Medium, sched.High} {
		id, err := s.Create(counter, 10, p)
		if err != nil {
			return err
		}
		labels[id] = p.String()
	}
	id, err := s.Create(counter, 40, sched.Medium)
	if err != nil {
		return err
	}
	labels[id] = "MAIN"

	if err := s.Run(); err != nil {
		return err
	}
	for _, info := range s.Threads() {
		fmt.Printf("T%d %-6s dispatched %d times\n", info.ID, labels[info.ID], info.Dispatches)
	}
	fmt.Printf("preemptions: %d\n", s.Preemptions())
	return nil
}

// mutexDemo has a LOW thread hold a lock while a HIGH thread contends
// for it, then prints who wrote to the shared log in which order.
func mutexDemo(s *sched.Scheduler) error {
	defer s.Close()
	fmt.Println("=== Mutex hand-off ===")

	var (
		m   sched.Mutex
		log []string
	)
	_, err := s.Create(func(t *sched.Thread, arg any) any {
		m.Lock(t)
		log = append(log, fmt.Sprintf("T%d (LOW) holds the lock", t.ID()))
		_, err := t.Scheduler().Create(func(t *sched.Thread, arg any) any {
			m.Lock(t)
			log = append(log, fmt.Sprintf("T%d (HIGH) acquired the lock", t.ID()))
			if err := m.Unlock(t); err != nil {
				return err
			}
			return nil
		}, nil, sched.High)
		if err != nil {
			return err
		}
		t.Yield()
		log = append(log, fmt.Sprintf("T%d running at %s while holding the lock", t.ID(), t.Priority()))
		return m.Unlock(t)
	}, nil, sched.Low)
	if err != nil {
		return err
	}
	if err := s.Run(); err != nil {
		return err
	}
	for _, line := range log {
		fmt.Println("  " + line)
	}
	return nil
}

func matrixDemo(s *sched.Scheduler, n, parts int) error {
	defer s.Close()
	fmt.Printf("=== Matrix %dx%d, %d parts ===\n", n, n, parts)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	a, b := workload.Random(n, rng), workload.Random(n, rng)
	printMem("Before")

	start := time.Now()
	green, err := workload.RunGreen(s, a, b, parts)
	if err != nil {
		return err
	}
	fmt.Printf("green threads: %v (preemptions %d)\n", time.Since(start), s.Preemptions())

	start = time.Now()
	par, err := workload.MultiplyParallel(context.Background(), a, b, parts)
	if err != nil {
		return err
	}
	fmt.Printf("os threads:    %v\n", time.Since(start))

	for i := range green.Data {
		if green.Data[i] != par.Data[i] {
			return fmt.Errorf("results differ at element %d", i)
		}
	}
	printMem("After")
	return nil
}
