package main

import "github.com/andrewramsay/clueweb-tools-go/cmd"

func main() {
	cmd.Execute()
}
