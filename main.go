package main

import "pair-collection-backend/cmd"

func main() {
	cmd.Run()
}
