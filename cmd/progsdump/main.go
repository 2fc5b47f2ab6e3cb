// Copyright (C) 2024 The progsvm Authors.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Command progsdump prints the structure of a compiled progs.dat file:
// its function table, field layout, and a digest suitable for cache
// keying, without executing any bytecode.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/qw-ctf/progsvm/progs"
)

var (
	dashFunctions bool
	dashFields    bool
	dashDigest    bool
	dashNames     bool
)

func init() {
	flag.BoolVar(&dashFunctions, "functions", false, "list every function and its kind")
	flag.BoolVar(&dashFields, "fields", false, "list every entity field and its offset")
	flag.BoolVar(&dashDigest, "digest", false, "print the BLAKE2b-256 content digest")
	flag.BoolVar(&dashNames, "names", false, "print every distinct function name, sorted")
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("progsdump: ")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: progsdump [-functions] [-fields] [-digest] [-names] <progs.dat>")
		os.Exit(2)
	}

	loaded, err := progs.LoadFile(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("entity stride: %d words\n", loaded.Entities.Stride())
	fmt.Printf("well-known fields: nextthink=%d frame=%d\n", loaded.Fields.NextThink, loaded.Fields.Frame)

	if dashDigest || (!dashFunctions && !dashFields) {
		fmt.Printf("digest: %x\n", loaded.Digest)
	}

	if dashFunctions {
		dumpFunctions(loaded)
	}
	if dashFields {
		dumpFields(loaded)
	}
	if dashNames {
		for _, name := range loaded.Functions.Names() {
			fmt.Println(name)
		}
	}
}

func dumpFunctions(loaded *progs.Loaded) {
	fns := loaded.Functions
	fmt.Printf("functions: %d\n", len(fns.Defs))
	for i, d := range fns.Defs {
		name, _ := fns.Strings.Get(d.NameID)
		switch d.Kind {
		case progs.FunctionBuiltin:
			fmt.Printf("  %4d  %-32s builtin #%d (%s)\n", i, name, int32(d.BuiltinID), d.BuiltinID)
		case progs.FunctionQuakeC:
			fmt.Printf("  %4d  %-32s entry=%d locals=%d argc=%d\n", i, name, d.FirstStatement, d.Locals, d.Argc)
		}
	}
}

func dumpFields(loaded *progs.Loaded) {
	fields := loaded.Entities.Fields
	fmt.Printf("fields: %d\n", len(fields.Defs))
	for i, d := range fields.Defs {
		name, _ := fields.Strings.Get(d.NameID)
		fmt.Printf("  %4d  %-32s offset=%-4d type=%s\n", i, name, d.Offset, d.Type)
	}
}
