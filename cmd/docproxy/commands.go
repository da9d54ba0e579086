package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nasdf/docproxy"
	"github.com/nasdf/docproxy/config"
	"github.com/nasdf/docproxy/core"
	dphttp "github.com/nasdf/docproxy/http"
	"github.com/nasdf/docproxy/logging"
	"github.com/nasdf/docproxy/node"

	"github.com/ipld/go-ipld-prime"
	"github.com/ipld/go-ipld-prime/codec/dagjson"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type app struct {
	configPath string
	dataDir    string
	remote     string
	addr       string
	cfg        *config.Config
	db         *docproxy.DB
	log        *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "docproxy",
		Short:        "Read and write documents in a docproxy store",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVarP(&a.dataDir, "data", "d", "", "badger data directory (overrides storage config)")
	root.PersistentFlags().StringVarP(&a.remote, "remote", "r", "", "base URL of a docproxy server (overrides transport config)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the store over HTTP",
		Args:  cobra.NoArgs,
		RunE:  a.run(a.runServe),
	}
	serve.Flags().StringVar(&a.addr, "addr", "", "listen address (overrides server config)")

	root.AddCommand(
		&cobra.Command{
			Use:   "get <path> [field]",
			Short: "Print a document or one of its fields as JSON",
			Args:  cobra.RangeArgs(1, 2),
			RunE:  a.run(a.runGet),
		},
		&cobra.Command{
			Use:   "set <path> <field> <value>",
			Short: "Set a field to a JSON value (bare words are strings)",
			Args:  cobra.ExactArgs(3),
			RunE: a.run(a.mutate(func(doc *core.Document, args []string) error {
				value, err := parseValue(args[2])
				if err != nil {
					return err
				}
				return doc.Set(args[1], value)
			})),
		},
		&cobra.Command{
			Use:   "unset <path> <field>",
			Short: "Remove a field",
			Args:  cobra.ExactArgs(2),
			RunE: a.run(a.mutate(func(doc *core.Document, args []string) error {
				return doc.DeleteField(args[1])
			})),
		},
		&cobra.Command{
			Use:   "incr <path> <field> <amount>",
			Short: "Increment a numeric field",
			Args:  cobra.ExactArgs(3),
			RunE: a.run(a.mutate(func(doc *core.Document, args []string) error {
				amount, err := parseValue(args[2])
				if err != nil {
					return err
				}
				return doc.Increment(args[1], amount)
			})),
		},
		&cobra.Command{
			Use:   "union <path> <field> <value>...",
			Short: "Add values missing from an array field",
			Args:  cobra.MinimumNArgs(3),
			RunE: a.run(a.mutate(func(doc *core.Document, args []string) error {
				values, err := parseValues(args[2:])
				if err != nil {
					return err
				}
				return doc.ArrayUnion(args[1], values...)
			})),
		},
		&cobra.Command{
			Use:   "remove <path> <field> <value>...",
			Short: "Remove values from an array field",
			Args:  cobra.MinimumNArgs(3),
			RunE: a.run(a.mutate(func(doc *core.Document, args []string) error {
				values, err := parseValues(args[2:])
				if err != nil {
					return err
				}
				return doc.ArrayRemove(args[1], values...)
			})),
		},
		&cobra.Command{
			Use:   "delete <path>",
			Short: "Delete a document",
			Args:  cobra.ExactArgs(1),
			RunE:  a.run(a.runDelete),
		},
		&cobra.Command{
			Use:   "export <file>",
			Short: "Export the store as a CAR file",
			Args:  cobra.ExactArgs(1),
			RunE:  a.run(a.runExport),
		},
		serve,
	)
	return root
}

func (a *app) open(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dataDir != "" {
		cfg.Storage.Backend = "badger"
		cfg.Storage.Path = a.dataDir
	}
	if a.remote != "" {
		cfg.Transport.Remote = a.remote
	}
	if a.addr != "" {
		cfg.Server.Addr = a.addr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.log, err = logging.New(cfg.Log)
	if err != nil {
		return err
	}
	a.db, err = docproxy.Open(ctx, *cfg, a.log, nil)
	return err
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	_ = a.log.Sync()
	return err
}

// load returns the document at path, fetched when it exists.
func (a *app) load(ctx context.Context, path string) (*core.Document, error) {
	doc, err := a.db.Doc(path)
	if err != nil {
		return nil, err
	}
	err = doc.Fetch(ctx, false)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}
	return doc, nil
}

type runFunc func(cmd *cobra.Command, args []string) error

// run opens the database before fn and closes it afterwards.
func (a *app) run(fn runFunc) runFunc {
	return func(cmd *cobra.Command, args []string) (err error) {
		if err := a.open(cmd.Context()); err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, a.close())
		}()
		return fn(cmd, args)
	}
}

func (a *app) mutate(fn func(doc *core.Document, args []string) error) runFunc {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		doc, err := a.load(ctx, args[0])
		if err != nil {
			return err
		}
		if err := fn(doc, args); err != nil {
			return err
		}
		plan, err := doc.Plan()
		if err != nil {
			return err
		}
		if err := doc.Save(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", plan.Kind, doc.Path())
		return nil
	}
}

func (a *app) runGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	doc, err := a.db.Doc(args[0])
	if err != nil {
		return err
	}
	if err := doc.Fetch(ctx, false); err != nil {
		return err
	}
	var value any
	if len(args) == 2 {
		v, err := doc.Get(ctx, args[1])
		if err != nil {
			return err
		}
		value = core.Plain(v)
	} else {
		value, err = doc.ToMap()
		if err != nil {
			return err
		}
	}
	return printValue(cmd.OutOrStdout(), value)
}

func (a *app) runDelete(cmd *cobra.Command, args []string) error {
	doc, err := a.db.Doc(args[0])
	if err != nil {
		return err
	}
	if err := doc.Delete(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", doc.Path())
	return nil
}

func (a *app) runExport(cmd *cobra.Command, args []string) error {
	if a.db.Store() == nil {
		return errors.New("export requires a local store")
	}
	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	if err := a.db.Store().Export(cmd.Context(), f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (a *app) runServe(cmd *cobra.Command, args []string) error {
	if a.db.Store() == nil {
		return errors.New("serve requires a local store")
	}
	return dphttp.ListenAndServe(cmd.Context(), a.db.Transport(), a.cfg.Server.Addr, a.log.Named("http"))
}

// parseValue decodes a dag-json value. Input that is not valid dag-json is
// used as a plain string.
func parseValue(arg string) (any, error) {
	n, err := ipld.Decode([]byte(arg), dagjson.Decode)
	if err != nil {
		return arg, nil
	}
	return node.Value(n)
}

func parseValues(args []string) ([]any, error) {
	values := make([]any, len(args))
	for i, arg := range args {
		v, err := parseValue(arg)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func printValue(w io.Writer, value any) error {
	n, err := node.Build(value)
	if err != nil {
		return err
	}
	data, err := ipld.Encode(n, dagjson.Encode)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
