package main

import "hopper/cmd"

func main() {
	cmd.Execute()
}
