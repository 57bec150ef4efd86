package main

import "github.com/cmena/presente/cmd"

func main() {
	cmd.Execute()
}
