package main

import "github.com/maxvaer/keyprobe/cmd"

func main() {
	cmd.Execute()
}
