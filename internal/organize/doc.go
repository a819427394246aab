// Package organize computes deterministic library paths for flattened media
// and performs idempotent placement under the library root.
package organize
