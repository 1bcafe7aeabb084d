// The main package for the concord-stager executable.
package main

import (
	"github.com/edupack/concord-stager/cmd"
)

func main() {
	cmd.Execute()
}
