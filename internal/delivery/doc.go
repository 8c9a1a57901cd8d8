// Package delivery uploads finished artifacts to the requester and fans a
// copy out to the audit channels.
//
// The size ceiling is enforced before any upload is attempted. Only the
// upload to the requester can fail a job; both audit destinations are best
// effort and independent of each other.
package delivery
