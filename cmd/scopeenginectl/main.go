/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

func main() {
	Execute()
}
