// Command parari runs one prompt through several coding agents in parallel,
// each in its own git worktree, and applies the result the operator picks.
package main

import "os"

func main() {
	os.Exit(Execute())
}
