// Package coalesce shares one in-flight invocation between all callers asking
// for the same key, and bounds every invocation with a timeout.
//
// Each key owns at most one slot at a time. The first caller of a key creates
// the slot, starts the invocation and a single timer; callers arriving before
// the slot settles join it and receive the same outcome.
//
//	caller A ---Invoke(k)---> slot{k} ---> invoke(ctx, k)
//	caller B ---Invoke(k)--->   |             |
//	                            |<-- value ---+   or timer fires first
//	A, B   <---- outcome -------+
//
// Invariants:
//   - At most one invocation per key is running on behalf of a slot.
//   - The invocation and the timer race; the loser is ignored. A late
//     invocation result is dropped and never delivered to anybody.
//   - The slot is removed as it settles, on success, error and timeout alike,
//     so the next call for the key always starts a fresh invocation.
//   - Different keys never wait for each other.
//
// A caller whose context is done stops waiting, it does not cancel the slot
// for the other callers.
package coalesce
