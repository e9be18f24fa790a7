package main

import (
	"github.com/moltbot/molt-treasury/cmd"
)

func main() {
	cmd.Execute()
}
