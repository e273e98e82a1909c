package main

import "github.com/agentic-research/blocklink/cmd"

func main() {
	cmd.Execute()
}
