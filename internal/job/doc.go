// Package job runs uploaded recordings in the background with a bounded
// number of workers and keeps finished jobs until their retention expires.
package job
