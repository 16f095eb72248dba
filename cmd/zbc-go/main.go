package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd := os.Args[1]
	args := os.Args[2:]
	var err error
	switch cmd {
	case "format":
		err = runFormat(args)
	case "dump":
		err = runDump(args)
	case "report":
		err = runReport(args)
	case "activate":
		err = runActivate(args)
	case "rw":
		err = runRW(args)
	case "-h", "--help", "help":
		usage()
	default:
		log.Fatalf("unknown subcommand: %s", cmd)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func usage() {
	prog := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n", prog)
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  format   -cfg <cfgstring> -size <bytes>        create/reformat a backing image\n")
	fmt.Fprintf(os.Stderr, "  dump     -cfg <cfgstring>                      print geometry and zone/realm summary\n")
	fmt.Fprintf(os.Stderr, "  report   zones|domains|realms|mutations -cfg <cfgstring> [filters]\n")
	fmt.Fprintf(os.Stderr, "  activate -cfg <cfgstring> -start <lba> -nrzones <n> -domain <id> [-query] [-all]\n")
	fmt.Fprintf(os.Stderr, "  rw       read|write -cfg <cfgstring> -lba <lba> -nr <n>  raw LBA i/o, bypassing the command dispatcher\n")
}
