// Package app wires configuration, services, transport handlers and the
// HTTP server into a runnable application.
package app
