package main

import "github.com/kiosklabs/facegate/cmd"

func main() {
	cmd.Execute()
}
