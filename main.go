package main

import "github.com/planthub/authapi/cmd"

func main() {
	cmd.Execute()
}
