package main

import "github.com/oshokin/pricebot-bootstrap/cmd/pricebot-bootstrap/cmd"

func main() {
	cmd.Execute()
}
