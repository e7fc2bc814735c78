// Command raptodb-server runs the Rapto key-value database server: an
// in-memory, capacity-bounded store with LZ4-compressed snapshots and
// an optionally encrypted, optionally password-authenticated,
// length-prefixed command protocol.
package main
