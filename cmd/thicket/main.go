package main

import (
	"github.com/thicketfs/thicket/cmd/thicket/cmd"
)

func main() {
	cmd.Execute()
}
