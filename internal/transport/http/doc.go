// Package http contains the HTTP handlers for the dataset, plot, batch
// and health endpoints. Handlers depend on service interfaces and render
// errors as RFC 7807 problem details.
package http
