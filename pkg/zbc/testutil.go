package zbc

import (
	"os"
	"testing"
)

// newTempBackingFile creates an empty, unformatted backing file under the
// test's temp dir and returns its path. The caller Opens it with a
// DevConfig of its choosing.
func newTempBackingFile(t *testing.T) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "zbc-go-*.img")
	if err != nil {
		t.Fatal(err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

// openTestDevice formats and opens a fresh Device for cfg, pointed at a
// scratch backing file, and registers a cleanup that closes it.
func openTestDevice(t *testing.T, cfg DevConfig) *Device {
	t.Helper()
	cfg.Path = newTempBackingFile(t)
	dev, err := Open(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		if err := dev.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})
	return dev
}

// devConfigForProfile builds a small DevConfig exercising the named model
// for t, with a reduced geometry so tests run against a few megabytes
// rather than the production defaults.
func devConfigForProfile(devType DeviceType, model string) DevConfig {
	cfg := DefaultDevConfig()
	cfg.Type = devType
	cfg.Model = model
	cfg.LBASize = 512
	cfg.ZoneSize = 64 * 1024 / uint64(cfg.LBASize) // 64 KiB zones
	cfg.MaxOpenZones = 4
	cfg.SMRGainPct = 125

	zoneBytes := cfg.ZoneSize * uint64(cfg.LBASize)
	if devType == ZoneDomains {
		cfg.RealmSize = zoneBytes * 4 // 4 zones/realm, logical side
		const nrRealms = 2
		logicalCapacity := uint64(nrRealms) * cfg.RealmSize
		cfg.CapacityBytes = logicalCapacity * uint64(cfg.SMRGainPct) / 100
	} else {
		cfg.ConvZones = 2
		cfg.CapacityBytes = zoneBytes * 16 // room for fault-injection offsets up to zone 8
	}
	return cfg
}

// flatIOVec wraps a single []byte as the one-element IOVec slice most
// ReadLBAs/WriteLBAs callers need.
func flatIOVec(buf []byte) []IOVec {
	return []IOVec{{Base: buf}}
}
