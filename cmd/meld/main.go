// Command meld composes stored objects into one destination object.
//
// The request is read from a YAML or JSON manifest; storage settings come from
// the environment (see meld.LoadConfig).
//
//	meld compose.yaml
//	MELD_MODE=local MELD_LOCAL_ROOT=./data meld compose.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	flags "github.com/jessevdk/go-flags"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/meld"
	"github.com/zoobzio/meld/manifest"
)

// Options defines CLI flags.
type Options struct {
	Mode        string `long:"mode" description:"Execution mode (backend or local); overrides MELD_MODE"`
	Backend     string `short:"b" long:"backend" description:"Storage backend (gcs, s3, minio or azure); overrides MELD_BACKEND"`
	Root        string `long:"root" description:"Local store directory; overrides MELD_LOCAL_ROOT"`
	ContentType string `short:"t" long:"content-type" description:"Destination content type; overrides the manifest"`
	Check       bool   `long:"check" description:"Report whether the destination exists after composing"`
	Quiet       bool   `short:"q" long:"quiet" description:"Suppress event output"`
	Args        struct {
		Manifest string `positional-arg-name:"manifest" description:"Path to the compose manifest" required:"yes"`
	} `positional-args:"yes"`
}

func main() {
	var opts Options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg, err := meld.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	flush := func() {}
	if !opts.Quiet {
		flush = logEvents()
	}
	err = run(ctx, &opts, cfg)
	flush()
	if err != nil {
		stop()
		log.Fatal(err)
	}
}

func run(ctx context.Context, opts *Options, cfg *meld.Config) error {
	if err := applyOverrides(opts, cfg); err != nil {
		return err
	}

	dir, name := filepath.Split(opts.Args.Manifest)
	if dir == "" {
		dir = "."
	}
	m, err := manifest.Load(osfs.New(dir), name)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}

	d, store, err := newDispatcher(ctx, cfg)
	if err != nil {
		return err
	}

	var extra []meld.ComposeOption
	if opts.ContentType != "" {
		extra = append(extra, meld.WithContentType(opts.ContentType))
	}
	if err := m.Compose(ctx, d, extra...); err != nil {
		return err
	}

	if opts.Check {
		ok, err := meld.Exists(ctx, store, m.Destination)
		if err != nil {
			return err
		}
		fmt.Printf("%s exists: %t\n", m.Destination, ok)
	}
	return nil
}

func applyOverrides(opts *Options, cfg *meld.Config) error {
	if opts.Mode != "" {
		mode, err := meld.ParseMode(opts.Mode)
		if err != nil {
			return err
		}
		cfg.Mode = mode
	}
	if opts.Backend != "" {
		cfg.Backend = opts.Backend
	}
	if opts.Root != "" {
		cfg.LocalRoot = opts.Root
	}
	return nil
}

// logEvents prints meld signals with the standard logger.
// The returned function drains pending events and detaches the hooks.
func logEvents() func() {
	hooks := []struct {
		signal capitan.Signal
		label  string
	}{
		{meld.ComposeStarted, "compose started"},
		{meld.ComposeCompleted, "compose completed"},
		{meld.ComposeFailed, "compose failed"},
		{meld.SourceLeadingSlash, "warning: source starts with '/'"},
		{meld.SourceBucketPrefix, "warning: source starts with the bucket"},
		{meld.ClientOutdated, "warning: storage client is outdated"},
	}

	closers := make([]func(), 0, len(hooks))
	for _, h := range hooks {
		label := h.label
		l := capitan.Hook(h.signal, func(_ context.Context, e *capitan.Event) {
			log.Print(label + describe(e.Fields()))
		})
		closers = append(closers, func() {
			_ = l.Drain(context.Background())
			l.Close()
		})
	}
	return func() {
		for _, c := range closers {
			c()
		}
	}
}

func describe(fields []capitan.Field) string {
	var b strings.Builder
	if v := meld.FieldDestination.ExtractFromFields(fields); v != "" {
		fmt.Fprintf(&b, " destination=%s", v)
	}
	if v := meld.FieldSource.ExtractFromFields(fields); v != "" {
		fmt.Fprintf(&b, " source=%q", v)
	}
	if v := meld.FieldMode.ExtractFromFields(fields); v != "" {
		fmt.Fprintf(&b, " mode=%s", v)
	}
	if v := meld.FieldComponents.ExtractFromFields(fields); v > 0 {
		fmt.Fprintf(&b, " components=%d", v)
	}
	if v := meld.FieldDuration.ExtractFromFields(fields); v > 0 {
		fmt.Fprintf(&b, " duration=%s", v)
	}
	if err := meld.FieldError.ExtractFromFields(fields); err != nil {
		fmt.Fprintf(&b, " error=%q", err.Error())
	}
	return b.String()
}
