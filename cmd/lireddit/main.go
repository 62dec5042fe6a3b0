// Package main is the entry point for the lireddit GraphQL server.
package main

func main() {
	Execute()
}
