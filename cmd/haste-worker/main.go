package main

import "github.com/mvp-joe/project-haste/internal/cli"

func main() {
	cli.Execute()
}
