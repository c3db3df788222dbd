// Package probe implements the two backend calls the guard depends on: validating
// an access credential and exchanging a refresh credential for a new access
// credential.
//
// Every backend response is classified into a small status set ([StatusOK],
// [StatusUnauthorized], [StatusNotFound], [StatusOther]) before it leaves this
// package. Raw HTTP status codes and bodies never reach callers.
//
// # What this package must NOT do
//
//   - Retry. Retry policy belongs to the embedding application.
//   - Read or write credential stores.
//   - Put credential values or response bodies into returned errors.
package probe
