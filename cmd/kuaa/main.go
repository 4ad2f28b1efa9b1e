// Command kuaa translates sentences with a YAML language pack.
//
//	kuaa translate --lexicon eng-spa.yaml "John kicked the bucket."
//	kuaa check eng-spa.yaml
package main

import (
	"fmt"
	"os"
)

// Exit codes
const (
	exitSuccess = 0
	exitError   = 1
	exitUsage   = 2
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "kuaa:", err)
		if isUsage(err) {
			os.Exit(exitUsage)
		}
		os.Exit(exitError)
	}
	os.Exit(exitSuccess)
}
