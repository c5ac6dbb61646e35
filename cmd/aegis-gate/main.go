package main

import "github.com/aegis-gate/aegisgate/cmd/aegis-gate/cmd"

func main() {
	cmd.Execute()
}
