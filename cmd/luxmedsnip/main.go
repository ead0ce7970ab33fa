package main

import "github.com/example/luxmed-sniper/cmd"

func main() {
	cmd.Execute()
}
