// Package models contains the request, event and progress types exchanged
// between the browser extension, the state service, the worker service and
// the plugin coordinator.
package models
