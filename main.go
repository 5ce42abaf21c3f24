// The main package for the modelwatch executable.
package main

import (
	"github.com/modelwatch/modelwatch/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
