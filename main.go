package main

import "github.com/techagentng/collabhub/cmd"

func main() {
	cmd.Execute()
}
