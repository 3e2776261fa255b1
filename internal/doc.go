// Package internal holds helpers private to goPortal, currently the random
// session identifier source.
//
// # Sub-packages
//
//   - flows: the callback state machine and logout orchestration
//   - rate: Redis fixed-window counter behind the failed-callback throttle
//
// # What this package must NOT do
//
//   - Export types that appear in the public goPortal API.
//   - Be imported by any package outside the goPortal module.
package internal
