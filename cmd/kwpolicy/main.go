// Package main provides kwpolicy, a tool to run compiled Kubewarden policies
// against admission request fixtures and to manage policy metadata.
package main

func main() {
	Execute()
}
