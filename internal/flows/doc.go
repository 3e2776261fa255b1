// Package flows contains pure-function orchestrators for every Engine operation
// that coordinates more than one dependency.
//
// Each flow function (RunAuthorize, RunLogout) accepts a typed dependency struct
// and returns results without side-effects beyond those dependencies. The Engine
// builds the dependency structs once and stays thin.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the provider client, session store, callback
// limiter, audit dispatcher and metrics. They do NOT own any of these resources;
// ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goPortal (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency functions.
package flows
