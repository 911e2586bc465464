// Package authclient provides client-side session primitives (credential
// cookies, token expiry tracking, silent refresh) plus rendering guards for
// server-rendered and proxy frontends that authenticate against a remote
// backend.
//
// Session lifecycle:
//   - Session hydrates from the CookieStore on Start, serving a possibly
//     stale user immediately while a background refresh reconciles with the
//     backend. Status moves through a fixed transition graph (unknown,
//     loading, authenticated, unauthenticated, error) and every change is
//     observable through Snapshot, OnChange callbacks, and the ActivitySink.
//   - ProfileRefresher owns the refresh round-trip: a 401 purges stored
//     credentials and settles the session unauthenticated, while transport
//     failures leave stored state untouched so the next staleness check can
//     retry.
//
// Guards:
//   - Guard reduces a Snapshot to a rendering decision (loading, content,
//     unauthorized, error). ExceptionPredicate is the escape hatch for
//     public-within-private routes: OR and AND condition groups that, when
//     satisfied, render content regardless of auth status.
//   - RouteGuard adapts the same decision table to go-router middleware,
//     remembering the rejected route in a cookie so login flows can bounce
//     the user back where they started.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Session to
//     describe hydration, status changes, login, logout, and refresh events.
//     Sinks run best-effort (errors are logged) so you can forward to a
//     database or queue without blocking the session.
package authclient
