package main

import "github.com/Togather-Foundation/agenda/cmd/server/cmd"

func main() {
	cmd.Execute()
}
