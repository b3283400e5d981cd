package main

import "twig-cs-formatter/internal/cli"

func main() {
	cli.Execute()
}
