package main

import "github.com/kozaktomas/attendx/cmd"

func main() {
	cmd.Execute()
}
