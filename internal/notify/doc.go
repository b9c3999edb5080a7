// Package notify delivers match alerts and the startup liveness message to
// operator channels.
//
// # Channels
//
// A Channel is one configured destination (a Discord webhook, a Slack
// webhook or a Telegram chat). Each event becomes exactly one outbound call
// per channel. There is no retry: a failed send is logged and counted, and
// the next channel is tried.
//
// # Dispatcher
//
// The Dispatcher walks channels in configured order, throttles each one with
// its own token bucket and isolates failures so one broken sink never
// affects the others or the caller.
package notify
