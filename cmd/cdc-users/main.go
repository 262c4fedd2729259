// Command cdc-users prints one credential line for a CDC user. Append the
// output to the server-side credential file of the CDC service (e.g.
// /var/cache/maxscale/<service>/cdcusers).
package main

import (
	"fmt"

	kingpin "gopkg.in/alecthomas/kingpin.v2"

	cdc "github.com/streamhouse/go-maxscale-cdc"
)

var (
	user = kingpin.Arg("USER", "Username").
		Required().
		String()
	password = kingpin.Arg("PASSWORD", "Password").
			Required().
			String()
)

func main() {
	kingpin.Parse()
	fmt.Println(cdc.EncodeAuth(*user, *password))
}
