// main.go
package main

import "github.com/brensch/packgrab/cmd"

func main() {
	cmd.Execute()
}
