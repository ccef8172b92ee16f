// Command selenium-runner runs the data-driven storefront UI suite.
package main

import "github.com/devicelab-dev/selenium-runner/pkg/cli"

func main() {
	cli.Execute()
}
