// Package main is the single-binary entrypoint for ritim.
// The same binary tracks progress from the terminal and serves the API.
package main

import "github.com/ritim-app/ritim/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
