package sandbox

import (
	"runtime"
	"time"
)

// memSampleInterval is how often the sampler reads heap statistics while a
// script runs.
const memSampleInterval = 10 * time.Millisecond

// memSampler approximates a script's memory usage by sampling heap
// allocation against a baseline taken when the script starts. The figure is
// approximate by nature: the heap is shared with the rest of the process and
// the garbage collector can shrink it mid-run, so the sampler keeps the peak
// delta it observes rather than a final before/after difference alone.
type memSampler struct {
	baseline uint64
	peak     uint64
	stop     chan struct{}
	done     chan struct{}
}

// startMemSampler takes the baseline reading and begins periodic sampling.
func startMemSampler() *memSampler {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	s := &memSampler{
		baseline: m.Alloc,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *memSampler) loop() {
	defer close(s.done)
	ticker := time.NewTicker(memSampleInterval)
	defer ticker.Stop()

	var m runtime.MemStats
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			runtime.ReadMemStats(&m)
			if m.Alloc > s.baseline && m.Alloc-s.baseline > s.peak {
				s.peak = m.Alloc - s.baseline
			}
		}
	}
}

// finish stops the sampler, folds in one last reading and returns the peak
// observed usage in bytes.
func (s *memSampler) finish() int64 {
	close(s.stop)
	<-s.done

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	if m.Alloc > s.baseline && m.Alloc-s.baseline > s.peak {
		s.peak = m.Alloc - s.baseline
	}
	return int64(s.peak)
}
