package main

import "github.com/StinkyLord/clangcl-adapter/cmd"

func main() {
	cmd.Execute()
}
