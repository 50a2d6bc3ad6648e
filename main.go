package main

import "github.com/kozaktomas/face-recognition/cmd"

func main() {
	cmd.Execute()
}
