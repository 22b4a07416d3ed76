package main

import "accord/client/accord-cli/cmd"

func main() {
	cmd.Execute()
}
