//go:build sqlite_vec && cgo

package memory

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Register the sqlite-vec extension with the mattn/go-sqlite3 driver so
	// detectVecExtension's CREATE VIRTUAL TABLE ... USING vec0(...) probe in
	// memory.go succeeds. Built without the sqlite_vec tag, the probe fails
	// and the store degrades to keyword-only search per §4.1's contract.
	vec.Auto()
}
