// Package logs reads the daemon's log file for the CLI.
//
// Reads only consume complete lines: a line the daemon is still writing is
// left for the next read, so followers never print half a JSON record. A
// file that shrinks below the reader's offset (rotation or truncation) is
// read again from the start.
package logs
