// Package stack wraps a gopher-lua state in a Handle that owns it.
//
// The Lua operand stack is shared mutable state: the codec, the stream
// cursors and the dispatcher all read and write it. The Handle is the one
// place where that happens. It converts relative indices, guards stack
// heights, keeps the LIFO of open input cursors and runs finalizers when
// the state closes.
//
// Misuse of the protocol (wrong nesting, unbalanced tables, stale indices)
// is a contract violation. Handles created WithStrict(true) panic on a
// violation; otherwise the violation is logged and returned.
package stack
