// Command coregrep is a grep-compatible command-line search tool built on
// the cascade match engine, streaming buffer manager, and parallel
// recursive traversal packages.
package main

import "os"

func main() {
	os.Exit(Execute())
}
