package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/hazyhaar/tourguide/validate"
)

type fileReport struct {
	File   string          `json:"file"`
	Valid  bool            `json:"valid"`
	Error  string          `json:"error,omitempty"`
	Issues validate.Errors `json:"issues,omitempty"`
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprintln(fs.Output(), "usage: tourguide validate <file>...") }
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	enc := json.NewEncoder(os.Stdout)
	failed := 0
	for _, path := range fs.Args() {
		r := fileReport{File: path}
		data, err := os.ReadFile(path)
		if err == nil {
			_, r.Issues, err = validate.Decode(data)
		}
		if err != nil {
			r.Error = err.Error()
		}
		r.Valid = err == nil && len(r.Issues) == 0
		if !r.Valid {
			failed++
		}
		enc.Encode(r)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files invalid", failed, fs.NArg())
	}
	return nil
}
