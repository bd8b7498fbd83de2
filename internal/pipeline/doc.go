// Package pipeline turns a line of user text into device changes and a reply.
//
// A command goes through four stages:
//
//	text -> cache or language backend -> intent -> resolver -> executor
//
// The special commands "status", "perf" and "help" never reach the cache or
// the backend. A slow or broken backend degrades the command to an UNKNOWN
// intent with an apology; only an unreachable backend is reported to the
// caller as an error, so the transport can answer 503.
//
// Every handled command is counted, logged, written to the command log and
// broadcast as "command.handled".
package pipeline
