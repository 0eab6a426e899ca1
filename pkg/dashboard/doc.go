// Package dashboard serves the web front end of kobomedia: a form that
// starts a download run, the run history, the finished archives and the
// Prometheus metrics. When a JWT secret is configured the run and
// archive routes require an HS256 bearer token.
package dashboard
