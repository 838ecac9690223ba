package main

import (
	"github.com/scott-cotton/cli"
)

type MainConfig struct {
	Update    string `cli:"name=u aliases=update desc='batch file with update, values and overwrite'"`
	Values    string `cli:"name=values desc='file holding a mapping to merge into the document'"`
	Overwrite bool   `cli:"name=overwrite desc='let merged values replace a mapping with a sequence or the reverse'"`
	Check     bool   `cli:"name=check desc='report without reading or writing the document'"`
	Diff      bool   `cli:"name=diff desc='print a unified diff of the change'"`
	Patch     bool   `cli:"name=patch desc='print the change as a JSON merge patch'"`
	Color     bool   `cli:"name=color desc='color the diff'"`
	Verbose   bool   `cli:"name=v aliases=verbose desc='log operations to stderr'"`

	Main *cli.Command
}

func MainCommand() *cli.Command {
	cfg := &MainConfig{}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Main, "yamlupdate").
		WithSynopsis("yamlupdate [opts] <file>").
		WithDescription("yamlupdate sets, removes and merges values in a YAML file.").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return update(cfg, cc, args)
		})
}
