package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/ChengyuZhu6/zbc-go/pkg/zbc"
)

func runFormat(args []string) error {
	fs := flag.NewFlagSet("format", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var common CommonFlags
	common.register(fs)
	sizeStr := fs.String("size", "", "device capacity, e.g. 4g, 512m, or a raw byte count")

	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.resolve()
	if err != nil {
		return err
	}
	if *sizeStr == "" {
		return fmt.Errorf("format requires -size")
	}
	capBytes, err := parseByteSize(*sizeStr)
	if err != nil {
		return fmt.Errorf("invalid -size %q: %w", *sizeStr, err)
	}
	cfg.CapacityBytes = capBytes

	f, err := os.OpenFile(cfg.Path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("open backing file: %w", err)
	}
	defer f.Close()

	m, err := zbc.Format(f, cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	fmt.Printf("Format ID:       %s\n", m.FormatID)
	fmt.Printf("Device type:     %s\n", m.Cfg.Type)
	fmt.Printf("Model:           %s\n", m.Cfg.Model)
	fmt.Printf("Capacity:        %d bytes\n", m.Cfg.CapacityBytes)
	fmt.Printf("Zones:           %d\n", len(m.Zones))
	fmt.Printf("Realms:          %d\n", len(m.Realms))
	return nil
}

// parseByteSize accepts a raw decimal byte count or a k/m/g-suffixed size
// (either case). Unlike ParseCfgString's size options it does not accept a
// t suffix.
func parseByteSize(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}
	mult := uint64(1)
	switch s[len(s)-1] {
	case 'k', 'K':
		mult, s = 1<<10, s[:len(s)-1]
	case 'm', 'M':
		mult, s = 1<<20, s[:len(s)-1]
	case 'g', 'G':
		mult, s = 1<<30, s[:len(s)-1]
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return n * mult, nil
}
