// Package fetch provides the timed, optionally retrying HTTP JSON fetch used
// by every provider adapter.
//
// Each call carries its own timeout; an elapsed timeout surfaces as a typed
// *TimeoutError rather than a transport error, and in-flight I/O is cancelled
// through the request context. Retries use linear backoff and are applied
// only where a provider is configured as retryable.
package fetch
