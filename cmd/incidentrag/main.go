package main

import (
	"incidentrag/cmd/cmd"
)

func main() {
	cmd.Execute()
}
