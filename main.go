package main

import "threatmon/cmd"

func main() {
	cmd.Execute()
}
