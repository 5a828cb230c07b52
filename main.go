package main

import "github.com/ZacxDev/pagesgen/cmd"

func main() {
	cmd.Execute()
}
