package main

import (
	"github.com/ZacxDev/fetchooni/cmd"
)

func main() {
	cmd.Execute()
}
