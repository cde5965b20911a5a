package main

import "github.com/MeKo-Tech/scanwell/cmd/scanwell/cmd"

func main() {
	cmd.Execute()
}
