package main

import "raydium-pool-watch/internal/cli"

func main() {
	cli.Execute()
}
