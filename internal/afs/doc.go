// Package afs provides the client for the AFS directory-quota API and the
// error taxonomy shared by everything that reports collection failures.
//
// The API authenticates requests with an HMAC scheme: each request carries
// an X-Date header and an Authorization header holding the HMAC-SHA256
// signature of that date. The Client signs transparently through its
// transport and maps response statuses onto typed errors, so callers decide
// retry behavior from types rather than message text.
package afs
