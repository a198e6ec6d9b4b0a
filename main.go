package main

import "github.com/mselser95/cycle-arb/cmd"

func main() {
	cmd.Execute()
}
