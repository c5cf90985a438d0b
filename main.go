package main

import "github.com/Teamial/devtrack/cmd"

func main() {
	cmd.Execute()
}
