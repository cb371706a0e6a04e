// Command workbox generates the work box enclosure.
package main

import "github.com/soypat/workbox/internal/cli"

func main() {
	cli.Execute()
}
