// Command anstore lists the marker annotations found in Go modules.
//
// Examples:
//
//	anstore units example.com/shop/entity
//	anstore index field --module ./shop --root example.com/shop
//	anstore describe --format json
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
