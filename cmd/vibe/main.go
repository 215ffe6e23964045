package main

import "github.com/avikhandakar-dev/vibe/cmd/vibe/cmd"

func main() {
	cmd.Execute()
}
