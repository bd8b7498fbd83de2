// Package cli implements the interactive console for Hearth.
//
// The REPL reads one command per line and hands it to the command pipeline,
// which also answers the status, perf and help keywords. quit, exit and bye
// end the session, as does end of input or context cancellation.
package cli
