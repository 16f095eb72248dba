package main

import (
	"flag"
	"fmt"

	"github.com/ChengyuZhu6/zbc-go/pkg/zbc"
)

// CommonFlags is the cfgstring flag every subcommand shares: the same
// "dhsmr/opt/.../@path" string a tcmu-runner handler open() call would
// receive, so a device formatted by one invocation of this tool can be
// reopened by another without retyping every geometry option.
type CommonFlags struct {
	cfg string
}

func (c *CommonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.cfg, "cfg", "", "backing cfgstring (dhsmr/type-.../model-.../@path)")
}

func (c *CommonFlags) resolve() (zbc.DevConfig, error) {
	if c.cfg == "" {
		return zbc.DevConfig{}, fmt.Errorf("missing required -cfg flag")
	}
	return zbc.ParseCfgString(c.cfg)
}
