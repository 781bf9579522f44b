// Package metrics defines the recorder interface the SDK reports
// operation counts and latencies to.
package metrics

import "time"

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
