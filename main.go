package main

import "github.com/pipwatch/pipwatch/cmd"

func main() {
	cmd.Execute()
}
