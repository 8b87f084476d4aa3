package main

import "github.com/c30tools/autologin/cmd"

func main() {
	cmd.Execute()
}
