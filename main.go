// Command handspeak turns a wearable's motion stream into spoken sentences.
//
// Usage:
//
//	handspeak [flags] [command]
//
// Commands:
//
//	serve    - Accept device sessions and speak recognized sentences (default)
//	history  - Print the stored sentence history of a device
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
