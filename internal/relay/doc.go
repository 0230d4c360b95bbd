// Package relay contains the error taxonomy and the bounded-retry executor
// shared by the upstream-facing services. The executor is generic: callers
// supply the call and a classification predicate, so it knows nothing about
// PageSpeed or the messaging provider specifically.
package relay
