// Package jwt inspects and mints JWT access credentials.
//
// The guard treats access credentials as opaque. When a deployment issues JWTs,
// [Inspector] reads the unverified exp claim so locally expired credentials can
// skip the validate round trip. Signature checking stays with the backend.
//
// [Manager] signs and verifies tokens for development backends, the load test and
// the examples. It is never used on the guard's request path.
package jwt
