package zbc

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseCfgString resolves a cfgstring of the form
//
//	"dhsmr/" (option "/")* "@" path
//
// into a DevConfig, starting from DefaultDevConfig. Each option is a
// name-prefixed key=value-style token; a parser is chosen by the longest
// matching prefix from optionParsers. An unrecognized prefix, or a
// malformed suffix, returns a one-line error and leaves the partially
// built config unused by the caller (the function returns a zero value on
// error).
func ParseCfgString(s string) (DevConfig, error) {
	const head = "dhsmr/"
	if !strings.HasPrefix(s, head) {
		return DevConfig{}, fmt.Errorf("cfgstring: missing %q prefix", head)
	}
	rest := s[len(head):]

	at := strings.LastIndexByte(rest, '@')
	if at < 0 {
		return DevConfig{}, fmt.Errorf("cfgstring: missing '@path' suffix")
	}
	optPart, path := rest[:at], rest[at+1:]
	if path == "" {
		return DevConfig{}, fmt.Errorf("cfgstring: empty backing path")
	}

	cfg := DefaultDevConfig()
	cfg.Path = path
	cfg.Raw = s

	for _, tok := range strings.Split(optPart, "/") {
		if tok == "" {
			continue
		}
		if err := applyOption(&cfg, tok); err != nil {
			return DevConfig{}, err
		}
	}
	return cfg, nil
}

type optionParser func(cfg *DevConfig, suffix string) error

var optionParsers = map[string]optionParser{
	"type-":    parseType,
	"model-":   parseModel,
	"lba-":     parseLBA,
	"zsize-":   parseZSize,
	"conv-":    parseConv,
	"open-":    parseOpen,
	"rsize-":   parseRSize,
	"sgain-":   parseSGain,
	"maxact-":  parseMaxAct,
	"wpcheck-": parseWPCheck,
	"realms-":  parseRealms,
}

func applyOption(cfg *DevConfig, tok string) error {
	for prefix, parse := range optionParsers {
		if strings.HasPrefix(tok, prefix) {
			return parse(cfg, tok[len(prefix):])
		}
	}
	return fmt.Errorf("cfgstring: unrecognized option %q", tok)
}

func parseType(cfg *DevConfig, v string) error {
	switch strings.ToUpper(v) {
	case "NONZONED", "GENERIC":
		cfg.Type = NonZoned
	case "HM", "HMZONED":
		cfg.Type = HMZoned
	case "HA", "HAZONED":
		cfg.Type = HAZoned
	case "ZD", "ZONEDOM", "ZONE_DOM":
		cfg.Type = ZoneDomains
	default:
		return fmt.Errorf("cfgstring: unknown type- value %q", v)
	}
	return nil
}

// parseModel accepts both the current model names and the deprecated
// two-letter HA/HM shorthand, which both resolve to the 1PCNT_B model for
// backward compatibility with older cfgstrings.
func parseModel(cfg *DevConfig, v string) error {
	switch strings.ToUpper(v) {
	case "HA", "HM":
		cfg.Model = Model1PcntB
		return nil
	}
	cfg.Model = v
	return nil
}

func parseLBA(cfg *DevConfig, v string) error {
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil || !IsLBASizeValid(uint32(n)) {
		return fmt.Errorf("cfgstring: invalid lba- value %q", v)
	}
	cfg.LBASize = uint32(n)
	return nil
}

func parseZSize(cfg *DevConfig, v string) error {
	bytes, err := parseSizeWithSuffix(v)
	if err != nil {
		return fmt.Errorf("cfgstring: invalid zsize- value %q: %w", v, err)
	}
	if cfg.LBASize == 0 {
		return fmt.Errorf("cfgstring: zsize- requires lba- set first")
	}
	lbas := bytes / uint64(cfg.LBASize)
	if !IsZoneSizeValid(lbas) {
		return fmt.Errorf("cfgstring: zsize- %q is not a power-of-two LBA count", v)
	}
	cfg.ZoneSize = lbas
	return nil
}

func parseConv(cfg *DevConfig, v string) error {
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return fmt.Errorf("cfgstring: invalid conv- value %q", v)
	}
	cfg.ConvZones = uint32(n)
	return nil
}

func parseOpen(cfg *DevConfig, v string) error {
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return fmt.Errorf("cfgstring: invalid open- value %q", v)
	}
	cfg.MaxOpenZones = uint32(n)
	return nil
}

func parseRSize(cfg *DevConfig, v string) error {
	bytes, err := parseSizeWithSuffix(v)
	if err != nil {
		return fmt.Errorf("cfgstring: invalid rsize- value %q: %w", v, err)
	}
	cfg.RealmSize = bytes
	return nil
}

func parseSGain(cfg *DevConfig, v string) error {
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil || n <= 100 {
		return fmt.Errorf("cfgstring: invalid sgain- value %q", v)
	}
	cfg.SMRGainPct = uint32(n)
	return nil
}

func parseMaxAct(cfg *DevConfig, v string) error {
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return fmt.Errorf("cfgstring: invalid maxact- value %q", v)
	}
	cfg.MaxActivate = uint32(n)
	return nil
}

func parseWPCheck(cfg *DevConfig, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("cfgstring: invalid wpcheck- value %q", v)
	}
	cfg.WPCheck = b
	return nil
}

func parseRealms(cfg *DevConfig, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("cfgstring: invalid realms- value %q", v)
	}
	cfg.RealmsEnabled = b
	return nil
}

// parseSizeWithSuffix parses a decimal integer optionally followed by one
// of k/m/g/t (binary multiples), e.g. "256m" -> 256*1<<20.
func parseSizeWithSuffix(v string) (uint64, error) {
	if v == "" {
		return 0, fmt.Errorf("empty value")
	}
	mul := uint64(1)
	suffix := v[len(v)-1]
	switch suffix {
	case 'k', 'K':
		mul = 1 << 10
		v = v[:len(v)-1]
	case 'm', 'M':
		mul = 1 << 20
		v = v[:len(v)-1]
	case 'g', 'G':
		mul = 1 << 30
		v = v[:len(v)-1]
	case 't', 'T':
		mul = 1 << 40
		v = v[:len(v)-1]
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, err
	}
	return n * mul, nil
}
