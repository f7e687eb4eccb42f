// Package daemonctl is the client side of the cartographer daemon: an HTTP
// client for its API plus helpers that launch, probe and stop the daemon
// process through its pid file.
package daemonctl
