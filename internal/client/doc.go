// Package client implements the API layer of the toolbench admin console.
//
// # Overview
//
// The package wraps the backend's HTTP surface in four pieces:
//
//   - Client: a shared HTTP transport with a configured base address, a
//     request stage that attaches the stored bearer token, and a response
//     stage that classifies failures and pushes a user-facing notification
//     before returning the error to the caller.
//   - Session: login, registration, token refresh, current-user caching and
//     logout, built on Client and a TokenStore.
//   - Tools: the tool-configuration CRUD surface, including batch import,
//     file export and both forms of execution (request/response and
//     server-sent event streaming).
//   - Stream: a single server-sent event connection with idempotent close.
//
// # Session expiry
//
// A 401 from any request arms a one-shot latch. After a short debounce the
// latch clears the token store, notifies once, and invokes the configured
// OnSessionExpired hook. Concurrent 401s within one episode collapse into a
// single side effect; every individual caller still receives its own error.
//
// # Error policy
//
// Every network failure is both notified and returned. Nothing is swallowed
// except operations documented as best-effort (backend logout, startup user
// initialization).
package client
