// Package audit provides a minimal persistence layer for apply history.
//
// It currently supports:
//   - Apply run records (one entry per apply/uninstall)
//   - Notification dedup state (to survive restarts)
package audit
