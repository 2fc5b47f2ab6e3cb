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

// Command progsrun loads a compiled progs.dat and executes a single
// named function against a freshly constructed world, printing
// whatever the function sends through the bprint/sprint/dprint/eprint
// built-ins.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/qw-ctf/progsvm/progs"
)

var (
	dashFunc   string
	dashConfig string
	dashBudget int
)

func init() {
	flag.StringVar(&dashFunc, "func", "main", "name of the function to execute")
	flag.StringVar(&dashConfig, "config", "", "path to a YAML config file (optional)")
	flag.IntVar(&dashBudget, "budget", 0, "override the runaway instruction budget (0 = use config/default)")
}

func main() {
	logger := log.New(os.Stderr, "progsrun: ", log.LstdFlags)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: progsrun [-func name] [-config file] [-budget n] <progs.dat>")
		os.Exit(2)
	}

	cfg := progs.DefaultConfig()
	if dashConfig != "" {
		var err error
		cfg, err = progs.LoadConfigFile(dashConfig)
		if err != nil {
			logger.Fatal(err)
		}
	}
	if dashBudget > 0 {
		cfg.RunawayBudget = dashBudget
	}

	loaded, err := progs.LoadFile(flag.Arg(0))
	if err != nil {
		logger.Fatalf("loading %s: %v", flag.Arg(0), err)
	}
	cfg.Apply(loaded.Context)
	loaded.Context.Log = logger

	fnID, ok := loaded.Functions.ByName(dashFunc)
	if !ok {
		logger.Fatalf("progs.dat has no function named %q", dashFunc)
	}

	cvars := progs.NewMapCvars()
	cfg.ApplyCvars(cvars)
	host := &progs.Host{
		Cvars:     cvars,
		Printer:   &progs.LogPrinter{Log: logger},
		Precacher: progs.NullPrecacher{},
		Sound:     progs.NullSound{},
	}

	logger.Printf("run id %s: executing %s", loaded.Context.RunID, dashFunc)
	if err := loaded.Context.ExecuteProgram(loaded.Globals, loaded.Entities, host, fnID); err != nil {
		logger.Fatal(err)
	}
}
