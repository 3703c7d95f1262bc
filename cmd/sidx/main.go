// Command sidx parses a JSON (or newline-delimited JSON) file and prints
// either its raw tape or the value found at a JSON Pointer. It is a thin
// wrapper around the simdjson-go package for poking at a file from a
// terminal; it carries no invariants of its own.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	simdjson "github.com/minio/simdjson-go"
)

func main() {
	var (
		nd      = flag.Bool("nd", false, "treat input as newline-delimited JSON")
		pointer = flag.String("pointer", "", "RFC 6901 JSON Pointer to resolve and print, instead of dumping the tape")
		backend = flag.String("backend", "", "force the reported stage-1 backend name")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] file.json\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	msg, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatalf("reading %s: %v", flag.Arg(0), err)
	}

	var opts []simdjson.ParserOption
	if *backend != "" {
		opts = append(opts, simdjson.WithBackend(*backend))
	}

	parse := simdjson.Parse
	if *nd {
		parse = simdjson.ParseND
	}
	pj, err := parse(msg, nil, opts...)
	if err != nil {
		log.Fatalf("parsing %s: %v", flag.Arg(0), err)
	}

	if *pointer != "" {
		iter := pj.Iter()
		iter.AdvanceInto()
		_, dst, err := iter.Root(nil)
		if err != nil {
			log.Fatalf("reading document: %v", err)
		}
		val, err := dst.AtPointer(*pointer, nil)
		if err != nil {
			log.Fatalf("resolving %q: %v", *pointer, err)
		}
		out, err := val.MarshalJSON()
		if err != nil {
			log.Fatalf("marshaling result: %v", err)
		}
		fmt.Println(string(out))
		return
	}

	if err := pj.DumpTape(os.Stdout); err != nil {
		log.Fatalf("dumping tape: %v", err)
	}
}
