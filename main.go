package main

import "github.com/kiesman99/drape/cmd"

func main() {
	cmd.Execute()
}
