// Package cli provides the interactive offsync client.
//
// NewApp wires the SQLite record store, the upload client, the network
// monitor, the upload orchestrator and the optional inbox watcher. App.Run
// starts the background workers (probe loop, automatic drains on
// reconnection, inbox) and then blocks in a line-based REPL until the user
// exits.
//
// Files that failed the maximum number of attempts stay on the device and
// are shown as such by list and pending; only delete removes them.
package cli
