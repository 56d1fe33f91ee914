package main

import "github.com/AzielCF/wa-gateway/cmd"

func main() {
	cmd.Execute()
}
