package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ChengyuZhu6/zbc-go/pkg/zbc"
)

func runActivate(args []string) error {
	fs := flag.NewFlagSet("activate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var common CommonFlags
	common.register(fs)
	startLBA := fs.Uint64("start", 0, "starting LBA of the realm slice to activate")
	nrZones := fs.Uint("nrzones", 0, "number of zones to activate")
	domainID := fs.Uint("domain", 0, "target domain id (the type being activated into)")
	all := fs.Bool("all", false, "activate every realm in the target domain")
	query := fs.Bool("query", false, "dry-run: report the plan without applying it")

	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.resolve()
	if err != nil {
		return err
	}

	dev, err := zbc.Open(cfg)
	if err != nil {
		return err
	}
	defer dev.Close()

	req := zbc.ActivationRequest{
		StartLBA: *startLBA,
		NrZones:  uint32(*nrZones),
		All:      *all,
		DomainID: uint32(*domainID),
	}

	var outcome zbc.ActivationOutcome
	if *query {
		outcome, err = dev.Meta.Query(req)
	} else {
		outcome, err = dev.Meta.Activate(req)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Result: %v\n", outcome.Error)
	fmt.Printf("Zones processed: %d\n", outcome.ZonesProcessed)
	if outcome.Error != zbc.ActErrNone {
		fmt.Printf("Zone ID with unmet precondition: %d\n", outcome.ZIWUP)
		return nil
	}
	for _, d := range outcome.Descriptors {
		fmt.Printf("  zone %d, %d zones -> type=%s cond=%s\n", d.ZoneID, d.NrZones, d.Type, d.Cond)
	}
	return nil
}
