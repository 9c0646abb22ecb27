// Package main is the entry point for the fieldblob command line tool.
//
// fieldblob stores JSON documents in a JSONL collection and moves the fields
// listed in its YAML configuration into a blob store on save. Stored
// documents keep only a handle per offloaded field under "_blobs"; "get"
// fetches the blobs back.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/maruel/fieldblob/backend/internal/blobstore"
	"github.com/maruel/fieldblob/backend/internal/config"
	"github.com/maruel/fieldblob/backend/internal/jsonldb"
	"github.com/maruel/ksid"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "fieldblob: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	out := flag.CommandLine.Output()
	_, _ = fmt.Fprintf(out, "usage: fieldblob [flags] <command> [args]\n\n")
	_, _ = fmt.Fprintf(out, "commands:\n")
	_, _ = fmt.Fprintf(out, "  put <file.json>  save a JSON object, offloading configured fields (\"-\" reads stdin)\n")
	_, _ = fmt.Fprintf(out, "  get <id>         print a document with offloaded fields rehydrated\n")
	_, _ = fmt.Fprintf(out, "  list             print document IDs and offloaded field names\n")
	_, _ = fmt.Fprintf(out, "  keygen           print a new key for store.key_file\n\n")
	_, _ = fmt.Fprintf(out, "flags:\n")
	flag.PrintDefaults()
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	schema := flag.Bool("schema", false, "Print the config file JSON Schema and exit")
	dataDir := flag.String("data-dir", "./data", "Data directory")
	configPath := flag.String("config", "", "Config file (default <data-dir>/fieldblob.yaml)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = usage
	flag.Parse()

	if *version {
		printVersion()
		return nil
	}
	if *schema {
		return printJSON(os.Stdout, config.Schema())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	if err := ll.UnmarshalText([]byte(*logLevel)); err != nil {
		return fmt.Errorf("invalid -log-level: %w", err)
	}
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			val := a.Value.Any()
			skip := false
			switch t := val.(type) {
			case string:
				skip = t == ""
			case int64:
				skip = t == 0
			case time.Duration:
				skip = t == 0
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return errors.New("missing command")
	}
	if args[0] == "keygen" {
		k, err := config.GenerateKey()
		if err != nil {
			return err
		}
		_, err = fmt.Println(k)
		return err
	}

	if *configPath == "" {
		*configPath = filepath.Join(*dataDir, "fieldblob.yaml")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	eng, store, err := cfg.NewEngine(ctx, *dataDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := blobstore.Close(store); err != nil {
			slog.ErrorContext(ctx, "failed to close blob store", "err", err)
		}
	}()
	coll, err := jsonldb.Open(cfg.CollectionPath(*dataDir))
	if err != nil {
		return err
	}
	coll.OnBeforeSave(eng.BeforeSave)
	slog.DebugContext(ctx, "opened", "collection", cfg.CollectionPath(*dataDir), "store", cfg.Store.Kind, "docs", coll.Len())

	a := &app{coll: coll, rehydrate: eng.Rehydrate, out: os.Stdout}
	switch cmd := args[0]; cmd {
	case "put":
		if len(args) != 2 {
			return errors.New("usage: put <file.json>")
		}
		return a.put(ctx, args[1])
	case "get":
		if len(args) != 2 {
			return errors.New("usage: get <id>")
		}
		return a.get(ctx, args[1])
	case "list":
		if len(args) != 1 {
			return fmt.Errorf("unknown arguments: %v", args[1:])
		}
		return a.list()
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// app runs the subcommands against an opened collection.
type app struct {
	coll      *jsonldb.Collection
	rehydrate jsonldb.Hook
	out       io.Writer
}

func (a *app) put(ctx context.Context, path string) error {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path) //nolint:gosec // G304: path is a CLI argument
	}
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	doc := &jsonldb.Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return fmt.Errorf("invalid document: %w", err)
	}
	if err := a.coll.Save(ctx, doc); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	slog.InfoContext(ctx, "saved", "id", doc.RecordID(), "offloaded", doc.Refs().Len())
	return printJSON(a.out, doc)
}

func (a *app) get(ctx context.Context, s string) error {
	id, err := ksid.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", s, err)
	}
	doc, ok := a.coll.Get(id)
	if !ok {
		return fmt.Errorf("document %s not found", s)
	}
	if err := a.rehydrate(ctx, doc); err != nil {
		return fmt.Errorf("failed to rehydrate %s: %w", s, err)
	}
	return printJSON(a.out, doc)
}

func (a *app) list() error {
	for doc := range a.coll.All() {
		if _, err := fmt.Fprintf(a.out, "%s\t%v\n", doc.RecordID(), doc.Refs().Fields()); err != nil {
			return err
		}
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("fieldblob %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}
