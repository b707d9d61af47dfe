package main

import (
	"github.com/BioHazard786/roomcall/cmd"
	"github.com/BioHazard786/roomcall/internal/logging"
)

func main() {
	logging.Init()
	cmd.Execute()
}
