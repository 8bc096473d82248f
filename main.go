package main

import "github.com/ValentinKolb/recstore/cmd"

func main() {
	cmd.Execute()
}
