// Command goatweb runs the OWASP Top 10 demo web server and manages its users.
package main

import (
	"github.com/go-while/go-goatweb/internal/config"
)

var appVersion = "-unset-"

func main() {
	config.AppVersion = appVersion
	Execute()
}
