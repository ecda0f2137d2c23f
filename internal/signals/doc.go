// Package signals maps OS signals onto the typed Event stream the
// event loop (internal/loop) selects on alongside its other event
// sources (control connections, condition-store events, child reaps),
// so signal handling never shares a goroutine with registry mutation.
package signals
