package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/jacentio/storefront/internal/backend"
	"github.com/jacentio/storefront/internal/config"
	"github.com/jacentio/storefront/provision"
	"github.com/jacentio/storefront/reconcile"
	"github.com/jacentio/storefront/shadow"
	"github.com/jacentio/storefront/shop"
)

// runtime is built once per invocation from the environment.
type runtime struct {
	prov *provision.Provisioner
}

func (rt *runtime) init(ctx context.Context, files []string, logOut io.Writer) error {
	cfg, err := config.Load(files...)
	if err != nil {
		return err
	}
	logger := cfg.Logger(logOut)

	client, err := backend.Open(ctx, cfg)
	if err != nil {
		return err
	}
	uploader, err := backend.Uploader(ctx, cfg)
	if err != nil {
		return err
	}

	rt.prov = provision.New(client, shadow.New(shop.Aggregate{}), cfg.Provision(), logger)
	if uploader != nil {
		rt.prov.WithUploader(uploader)
	}
	return nil
}

func newApp(stdout, stderr io.Writer) *cli.App {
	rt := &runtime{}
	return &cli.App{
		Name:      "storefront",
		Usage:     "provision shop aggregates against the configured record store",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "env-file", Usage: "dotenv files to load (default .env)"},
		},
		Before: func(c *cli.Context) error {
			return rt.init(c.Context, c.StringSlice("env-file"), stderr)
		},
		Commands: []*cli.Command{
			saveCommand(rt),
			reconcileCommand(rt),
			addServiceCommand(rt),
			deleteStaffCommand(rt),
		},
	}
}

func saveCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "save",
		Usage: "save a shop aggregate read from a JSON file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "aggregate JSON, - for stdin", Required: true},
		},
		Action: func(c *cli.Context) error {
			draft, err := readAggregate(c.String("file"))
			if err != nil {
				return err
			}
			out, sum, err := rt.prov.Save(c.Context, draft)
			fmt.Fprintln(c.App.Writer, sum.String())
			if err != nil {
				return err
			}
			return writeJSON(c.App.Writer, out)
		},
	}
}

func reconcileCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "reconcile",
		Usage: "read a shop aggregate back from the store",
		Flags: []cli.Flag{shopFlag()},
		Action: func(c *cli.Context) error {
			out, rep := rt.prov.Reconcile(c.Context, c.String("shop"))
			if err := reportError(rep); err != nil {
				return err
			}
			return writeJSON(c.App.Writer, out)
		},
	}
}

func addServiceCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "add-service",
		Usage: "add one service to a saved shop",
		Flags: []cli.Flag{
			shopFlag(),
			&cli.StringFlag{Name: "name", Required: true},
			&cli.Float64Flag{Name: "price"},
			&cli.IntFlag{Name: "duration", Usage: "minutes"},
			&cli.StringFlag{Name: "category"},
		},
		Action: func(c *cli.Context) error {
			if err := load(c, rt); err != nil {
				return err
			}
			out, err := rt.prov.AddService(c.Context, shop.Service{
				Name:     c.String("name"),
				Price:    c.Float64("price"),
				Duration: c.Int("duration"),
				Category: c.String("category"),
				IsActive: true,
			})
			return printOutcome(c, out, err)
		},
	}
}

func deleteStaffCommand(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "delete-staff",
		Usage: "remove one staff member from a saved shop",
		Flags: []cli.Flag{
			shopFlag(),
			&cli.StringFlag{Name: "id", Required: true},
		},
		Action: func(c *cli.Context) error {
			if err := load(c, rt); err != nil {
				return err
			}
			out, err := rt.prov.DeleteStaff(c.Context, c.String("id"))
			return printOutcome(c, out, err)
		},
	}
}

func shopFlag() cli.Flag {
	return &cli.StringFlag{Name: "shop", Usage: "shop id", Required: true}
}

// load reads the shop into shadow state before an edit.
func load(c *cli.Context, rt *runtime) error {
	_, rep := rt.prov.Reconcile(c.Context, c.String("shop"))
	if rep.Parent.Source != reconcile.SourceStore {
		return fmt.Errorf("load shop %s: %w", c.String("shop"), rep.Parent.Err)
	}
	return nil
}

func printOutcome(c *cli.Context, out provision.Outcome, err error) error {
	fmt.Fprintf(c.App.Writer, "%s %s %s\n", out.Kind, out.ID, out.Status)
	if out.Notice != "" {
		fmt.Fprintln(c.App.Writer, out.Notice)
	}
	return err
}

func reportError(rep reconcile.Report) error {
	if rep.Parent.Err != nil {
		return fmt.Errorf("read shop %s: %w", rep.ShopID, rep.Parent.Err)
	}
	return nil
}

func readAggregate(path string) (shop.Aggregate, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return shop.Aggregate{}, fmt.Errorf("read aggregate: %w", err)
	}
	var a shop.Aggregate
	if err := json.Unmarshal(data, &a); err != nil {
		return shop.Aggregate{}, fmt.Errorf("decode aggregate: %w", err)
	}
	if a.Shop.Name == "" {
		return shop.Aggregate{}, errors.New("decode aggregate: shop name is required")
	}
	return a, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
