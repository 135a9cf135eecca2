/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"github.com/ssargent/latchtree/cmd/latchtree/cmd"
)

func main() {
	cmd.Execute()
}
