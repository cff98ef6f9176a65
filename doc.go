// Package authsync keeps authentication state consistent between a server
// process and a hydrated client.
//
// A per-request middleware resolves the full authentication result once,
// derives a sanitized projection that is safe to send to the browser, and
// publishes both on the request context: the full result on a lazy,
// server-only accessor and the projection on the client hydration channel.
// Server actions (check-session, refresh, organization switch, token access,
// sign-out) re-derive or mutate auth state server side and always answer
// with sanitized projections. The client subpackage mirrors the projection
// and keeps it consistent through those actions plus a session-expiry
// watcher.
//
// Secret material (access and refresh tokens) never crosses the
// server/client boundary: AuthResult refuses JSON serialization and
// ClientAuth is the only shape handed to untrusted code.
package authsync
