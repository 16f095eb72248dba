package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ChengyuZhu6/zbc-go/pkg/zbc"
)

// runRW is a debugging aid: it drives Metadata.ReadLBAs/WriteLBAs directly,
// bypassing the SCSI command dispatcher entirely, for exercising a backing
// image without a host target framework attached.
func runRW(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("rw requires a subcommand: read|write")
	}
	verb := args[0]
	rest := args[1:]

	fs := flag.NewFlagSet("rw "+verb, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var common CommonFlags
	common.register(fs)
	lba := fs.Uint64("lba", 0, "starting LBA")
	nr := fs.Uint("nr", 1, "number of LBAs")

	if err := fs.Parse(rest); err != nil {
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

	buf := make([]byte, uint64(*nr)*uint64(dev.Meta.Cfg.LBASize))
	iov := []zbc.IOVec{{Base: buf}}

	switch verb {
	case "read":
		sense, err := dev.Meta.ReadLBAs(*lba, uint64(*nr), iov)
		if err != nil {
			return err
		}
		if sense != nil {
			return fmt.Errorf("sense: %s", sense.Code)
		}
		_, err = os.Stdout.Write(buf)
		return err
	case "write":
		if _, err := io.ReadFull(os.Stdin, buf); err != nil {
			return fmt.Errorf("read stdin payload: %w", err)
		}
		sense, err := dev.Meta.WriteLBAs(*lba, uint64(*nr), iov)
		if err != nil {
			return err
		}
		if sense != nil {
			return fmt.Errorf("sense: %s", sense.Code)
		}
		return nil
	default:
		return fmt.Errorf("unknown rw subcommand %q", verb)
	}
}
