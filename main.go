package main

import "github.com/Andrandra1na/AMER-SMA/cmd"

func main() {
	cmd.Execute()
}
