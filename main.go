package main

import "github.com/andresmejia3/blurbox/cmd"

func main() {
	cmd.Execute()
}
