package service

import (
	"sync"
	"time"
)

type recordedMetric struct {
	kind  string
	name  string
	value int64
	tags  map[string]string
}

// recordingSink captures statsd calls for assertions.
type recordingSink struct {
	mu      sync.Mutex
	metrics []recordedMetric
}

func (r *recordingSink) Count(name string, value int64, tags map[string]string) {
	r.record(recordedMetric{kind: "count", name: name, value: value, tags: tags})
}

func (r *recordingSink) Gauge(name string, value float64, tags map[string]string) {
	r.record(recordedMetric{kind: "gauge", name: name, value: int64(value), tags: tags})
}

func (r *recordingSink) Timing(name string, value time.Duration, tags map[string]string) {
	r.record(recordedMetric{kind: "timing", name: name, value: int64(value), tags: tags})
}

func (r *recordingSink) record(m recordedMetric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, m)
}

// count returns how many times name was emitted.
func (r *recordingSink) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.metrics {
		if m.name == name {
			n++
		}
	}
	return n
}

// sum adds up every value emitted under name.
func (r *recordingSink) sum(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, m := range r.metrics {
		if m.name == name {
			total += m.value
		}
	}
	return total
}
