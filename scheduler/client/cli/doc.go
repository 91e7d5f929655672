// Package cli implements jobgatecl, the operator command line for a running jobgate daemon.
//
// resize and cancel write their request to a side channel file and signal the daemon found in
// the PID file; status reads the daemon's /status endpoint.
package cli
