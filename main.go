package main

import "github.com/mj1618/uitransfer/cmd"

func main() {
	cmd.Execute()
}
