// Command raptodb-cli is a minimal scriptable client for the raptodb
// wire protocol: it dials a server, performs the version check and
// optional handshake/auth, sends one query from argv, prints the
// response, and exits. It is not an interactive REPL.
package main
