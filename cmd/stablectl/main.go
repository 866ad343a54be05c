// Stablectl: manage horses, routine templates, and scheduled routines from the
// terminal. Runs against a stableops server, or fully local with SQLite and an
// in-memory bus when no server is configured.
package main

import "github.com/hoofbeat/stableops/internal/stablecli"

func main() {
	stablecli.Main()
}
