// Package taskpool provides a counted semaphore with FIFO admission for
// bounding concurrent work inside a single request.
//
// The pipeline runs two independent pools: one for upstream provider calls
// and one for pair-level computations. Keeping them separate prevents a
// multi-pair request from saturating the upstream pool and starving its own
// child calls.
//
// # Contract
//
// At most Limit tasks run at any instant, and queued waiters are admitted in
// the order they called Acquire. Completion order is unspecified.
package taskpool
