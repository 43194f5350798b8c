package main

import "library_backend/cmd"

func main() {
	cmd.Execute()
}
