package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	gyaml "github.com/goccy/go-yaml"
	"github.com/mattn/go-isatty"
	"github.com/scott-cotton/cli"
	"go.uber.org/zap"

	"github.com/yamledit/yamlupdate"
)

func update(cfg *MainConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Main.Parse(cc, args)
	if err != nil {
		cfg.Main.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: expected exactly one YAML file", cli.ErrUsage)
	}
	file := args[0]

	log := zap.NewNop()
	if cfg.Verbose {
		log, err = zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer log.Sync()
	}

	batch, err := cfg.batch()
	if err != nil {
		return err
	}
	res, err := yamlupdate.UpdateFile(file, batch,
		yamlupdate.WithLogger(log),
		yamlupdate.WithCheckMode(cfg.Check))
	if err != nil {
		report(cc.Out, gyaml.MapSlice{
			{Key: "changed", Value: false},
			{Key: "msg", Value: err.Error()},
		})
		return cli.ExitCodeErr(1)
	}

	if cfg.Diff {
		diff, err := res.Diff(file)
		if err != nil {
			return err
		}
		writeDiff(cc.Out, diff, cfg.useColor(cc.Out))
	}
	if cfg.Patch {
		patch, err := res.MergePatch()
		if err != nil {
			return err
		}
		fmt.Fprintf(cc.Out, "%s\n", patch)
	}
	return report(cc.Out, gyaml.MapSlice{
		{Key: "changed", Value: res.Changed},
		{Key: "updated_values", Value: res.UpdatedValues()},
	})
}

// batch reads the -u batch file and the -values file. Command line flags
// take precedence over the batch file's overwrite setting.
func (cfg *MainConfig) batch() (yamlupdate.Batch, error) {
	var b yamlupdate.Batch
	if cfg.Update != "" {
		data, err := os.ReadFile(cfg.Update)
		if err != nil {
			return b, fmt.Errorf("could not read batch %q: %w", cfg.Update, err)
		}
		b, err = yamlupdate.DecodeBatch(data)
		if err != nil {
			return b, fmt.Errorf("error decoding %s: %w", cfg.Update, err)
		}
	}
	if cfg.Values != "" {
		data, err := os.ReadFile(cfg.Values)
		if err != nil {
			return b, fmt.Errorf("could not read values %q: %w", cfg.Values, err)
		}
		src, err := yamlupdate.DecodeValues(data)
		if err != nil {
			return b, fmt.Errorf("error decoding %s: %w", cfg.Values, err)
		}
		b.Merge = &yamlupdate.MergeRequest{Source: src, AllowAdd: true}
	}
	if cfg.Overwrite && b.Merge != nil {
		b.Merge.OverwriteTypeMismatch = true
	}
	return b, nil
}

func (cfg *MainConfig) useColor(w io.Writer) bool {
	if cfg.Color {
		color.NoColor = false
		return true
	}
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func writeDiff(w io.Writer, diff string, colored bool) {
	if !colored {
		io.WriteString(w, diff)
		return
	}
	add := color.New(color.FgGreen).SprintFunc()
	del := color.New(color.FgRed).SprintFunc()
	hunk := color.New(color.FgCyan).SprintFunc()
	for _, line := range strings.SplitAfter(diff, "\n") {
		text, nl := strings.CutSuffix(line, "\n")
		switch {
		case strings.HasPrefix(text, "+++"), strings.HasPrefix(text, "---"):
		case strings.HasPrefix(text, "+"):
			text = add(text)
		case strings.HasPrefix(text, "-"):
			text = del(text)
		case strings.HasPrefix(text, "@@"):
			text = hunk(text)
		}
		io.WriteString(w, text)
		if nl {
			io.WriteString(w, "\n")
		}
	}
}

func report(w io.Writer, v gyaml.MapSlice) error {
	out, err := gyaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
