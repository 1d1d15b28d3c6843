// Package reconciler keeps a local selection of assignment ids consistent
// with the server.
//
// An Editor holds two sets for one relation: current, the last known server
// state, and pending, what the operator has selected. Save diffs them and
// issues one assign or unassign call per changed id. Successes commit into
// current, failures revert only their own id, and the editor then re-fetches
// server state. ToggleNow is the single-id variant used by checkbox screens.
package reconciler
