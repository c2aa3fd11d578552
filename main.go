// The main package for the stackexchange-crawler executable.
package main

import (
	"github.com/JakeFAU/stackexchange-crawler/cmd"
)

func main() {
	cmd.Execute()
}
