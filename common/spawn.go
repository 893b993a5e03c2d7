package common

import (
	"fmt"
	"os"
	"runtime/debug"
	"sync/atomic"
)

var runningGRs int64

// Go spawns a goroutine and keeps count of running goroutines so shutdown can check nothing leaked.
func Go(f func()) {
	atomic.AddInt64(&runningGRs, 1)
	go func() {
		defer atomic.AddInt64(&runningGRs, -1)
		f()
	}()
}

func RunningGRCount() int64 {
	return atomic.LoadInt64(&runningGRs)
}

func PanicHandler() {
	if r := recover(); r != nil {
		fmt.Printf("Panic caught in streamjoin: %v\n", r)
		debug.PrintStack()
		os.Exit(1)
	}
}
