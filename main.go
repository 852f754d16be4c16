/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/drgolem/psglab/cmd"

func main() {
	cmd.Execute()
}
