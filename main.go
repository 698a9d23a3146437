package main

import "github.com/areed1192/tap-federal-reserve/internal/cmd"

func main() {
	cmd.Execute()
}
