package main

import "github.com/stemsi/una-transcript/cmd/transcript/cmd"

func main() {
	cmd.Execute()
}
