// Package poller runs the poll-dedupe-notify loop.
//
// Each tick fetches one page of recent records, keeps those that match the
// target and have not been seen before, records each one durably and only
// then notifies. The loop is either Idle or Ticking; at most one tick body
// runs at a time and a tick that outlasts the period causes the next
// scheduled activation to be skipped.
package poller
