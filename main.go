package main

import "tokgrab/cmd"

func main() {
	cmd.Execute()
}
