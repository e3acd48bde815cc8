// Package pdcp owns bearer multiplexing for the convergence layer.
//
// Ownership boundary:
//   - unicast and multicast bearer tables
//   - routing of SDUs and PDUs to bearer entities or straight to the
//     control plane and gateway
//   - forwarding of security and tuning configuration
//
// Per-bearer protocol state (sequence numbers, ciphering, reordering) is
// owned by Entity implementations; see package entity for the reference
// one. Invalid routing is never surfaced to callers: it is logged, counted
// and turned into a no-op, releasing any buffer the call owned.
//
// Concurrency:
//   - every slot has its own mutex; lifecycle and traffic on the same slot
//     serialize on it
//   - Entity calls run with the slot lock held and must not re-enter the
//     Multiplexer synchronously for the same slot
package pdcp
