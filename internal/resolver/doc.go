// Package resolver locates raw media bytes for manifest entries, checking
// the local cache and unpacked export tree before falling back to network
// download with bounded retry.
package resolver
