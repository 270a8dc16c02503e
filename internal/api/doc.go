// Package api implements the HTTP handlers for the task scheduling
// service, translating between the JSON wire format and the service
// layer's domain types.
package api
