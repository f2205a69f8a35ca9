package main

import "github.com/papapumpkin/starforge/cmd"

func main() {
	cmd.Execute()
}
