package main

import "github.com/bz888/quill/cmd"

func main() {
	cmd.Execute()
}
