// Package async runs model operations on a bounded worker pool and
// delivers each result to a callback exactly once.
//
// Model operations in internal/model are blocking calls. Dispatcher is the
// continuation form of the same contract: submit an operation, get one
// callback with either a result or an error. A panic inside the operation
// is recovered and delivered as a *PanicError.
package async
