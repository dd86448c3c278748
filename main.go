/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package main

import "github.com/ansible-policy/gatekeeper/cmd"

func main() {
	cmd.Execute()
}
