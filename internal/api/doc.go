// Package api exposes the REST surface for submitting intents and tracking
// asynchronous run progress, alongside health and metrics endpoints.
package api
