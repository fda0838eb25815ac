package main

import "github.com/ValentinKolb/confcache/cmd"

func main() {
	cmd.Execute()
}
