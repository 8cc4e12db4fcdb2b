package main

import (
	"fmt"
	"runtime"
)

func printMem(prefix string) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	fmt.Printf("%s: Heap %d bytes (~%.1f MB), Allocs %d, GC runs: %d\n",
		prefix, m.HeapAlloc, float64(m.HeapAlloc)/1e6, m.Mallocs, m.NumGC)
}
