// Package workload holds the matrix-multiplication kernels used to exercise
// the scheduler. Rows of the product are split into contiguous ranges and
// each range is computed by one worker: a green thread created with
// sched.Scheduler.Create and collected with Thread.Join, or an OS-scheduled
// goroutine in an errgroup for comparison.
package workload
