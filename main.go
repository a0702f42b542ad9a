package main

import "github.com/loickal/email-insight/cmd"

var version = "0.1.0"

func main() {
	cmd.SetVersion(version)
	cmd.Execute()
}
