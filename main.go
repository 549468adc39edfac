package main

import "github.com/Sherav/gitbot/cmd"

func main() {
	cmd.Execute()
}
