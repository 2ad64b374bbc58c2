/*
probe queries a specific device endpoint,
and writes the response to standard output unmodified.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dsymonds/mystrom/mystrom"
)

const usage = `
Usage:
	probe [options] <host>
`

var (
	path    = flag.String("path", "report", "endpoint to query, relative to the device root")
	token   = flag.String("token", "", "secret for devices with authentication enabled")
	timeout = flag.Duration("timeout", 3*time.Second, "request timeout")
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	s := mystrom.NewSession(flag.Arg(0), mystrom.WithToken(*token), mystrom.WithTimeout(*timeout))
	defer s.Close()

	raw, err := s.Raw(context.Background(), *path)
	if err != nil {
		log.Fatal().Err(err).Str("host", s.Host()).Str("path", *path).Msg("Querying device")
	}
	os.Stdout.Write(raw)
}
