// Command igsaved collects the author profiles of an Instagram account's
// saved posts, as a one-shot CLI run or behind an HTTP API.
package main

func main() {
	Execute()
}
