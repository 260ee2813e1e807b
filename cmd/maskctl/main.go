// Command maskctl renders and inspects inpainting masks offline, using the
// same surface, controller and synthesizer as the mask-editing API.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
