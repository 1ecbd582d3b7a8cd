// Package metrics defines the Prometheus metrics exported by the diarization service.
package metrics
