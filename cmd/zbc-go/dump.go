package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ChengyuZhu6/zbc-go/pkg/zbc"
)

func runDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var common CommonFlags
	common.register(fs)
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
	m := dev.Meta

	fmt.Printf("ZBC-Go metadata information for %s\n", cfg.Path)
	fmt.Printf("Format ID:       %s\n", m.FormatID)
	fmt.Printf("Device type:     %s\n", m.Cfg.Type)
	fmt.Printf("Model:           %s\n", m.Cfg.Model)
	fmt.Printf("LBA size:        %d\n", m.Cfg.LBASize)
	fmt.Printf("Zone size:       %d LBAs\n", m.Cfg.ZoneSize)
	fmt.Printf("Max open zones:  %d\n", m.Cfg.MaxOpenZones)
	fmt.Printf("Zones:           %d\n", len(m.Zones))
	fmt.Printf("Domains:         %d\n", len(m.Domains))
	fmt.Printf("Realms:          %d\n", len(m.Realms))

	counts := make(map[zbc.ZoneCondition]int)
	var order []zbc.ZoneCondition
	for _, z := range m.Zones {
		if counts[z.Cond] == 0 {
			order = append(order, z.Cond)
		}
		counts[z.Cond]++
	}
	fmt.Println("Zone condition counts:")
	for _, c := range order {
		fmt.Printf("  %-14s %d\n", c, counts[c])
	}
	return nil
}
