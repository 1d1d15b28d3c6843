// Package gateway issues authorized requests to the identity service.
//
// Call joins a relative path onto the configured base URL, attaches the
// bearer token when one is given, and tags the request with an X-Request-ID.
// It does not retry, refresh tokens, or look at response bodies; a 401 or 403
// reaches the caller as an ordinary response.
package gateway
