package main

import (
	"github.com/ColonelBlimp/gomorse/cmd"
	"github.com/ColonelBlimp/gomorse/internal/recovery"
)

func main() {
	defer recovery.HandlePanic()
	cmd.Execute()
}
