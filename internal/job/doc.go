// Package job models one download request from URL to delivery.
//
// A Job moves forward through its States and never re-enters a terminal one.
// Every temporary path the pipeline creates is registered with Track before
// the path exists on disk, and Cleanup removes all of them exactly once no
// matter where the pipeline stopped.
package job
