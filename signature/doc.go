// Package signature derives the Lua-facing calling convention of a Go
// callable: its shape, the parameters read from the stack and the results
// pushed back. Signatures are computed once per type and cached.
package signature
