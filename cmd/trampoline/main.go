// Command trampoline inspects core wasm modules, resolves their imports
// against the built-in host interfaces and runs their exports.
package main

import (
	"os"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
