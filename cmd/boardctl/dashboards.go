package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	core "github.com/goliatone/go-dashboard-builder/components/builder"
	"github.com/goliatone/go-dashboard-builder/components/builder/export"
)

type listCmd struct{}

func (cmd *listCmd) Run(ctx context.Context, g *Globals) error {
	b, closeFn, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	tw := tabwriter.NewWriter(g.stdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tWIDGETS\tLAST MODIFIED")
	for _, doc := range b.Controller.List(ctx) {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", doc.ID, doc.Name, len(doc.Widgets), doc.LastModified.UTC().Format(time.RFC3339))
	}
	if b.Store.Degraded() {
		fmt.Fprintln(tw, "(storage unavailable, showing in-memory data)")
	}
	return tw.Flush()
}

type createCmd struct {
	Name string `arg:"" help:"Dashboard name."`
}

func (cmd *createCmd) Run(ctx context.Context, g *Globals) error {
	b, closeFn, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	id, err := b.Controller.Create(ctx, cmd.Name)
	if err != nil {
		return err
	}
	fmt.Fprintln(g.stdout(), id)
	return nil
}

type deleteCmd struct {
	ID  string `arg:"" help:"Dashboard id."`
	Yes bool   `short:"y" help:"Skip the confirmation prompt."`
}

func (cmd *deleteCmd) Run(ctx context.Context, g *Globals) error {
	b, closeFn, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	b.Controller.SelectDashboard(ctx, cmd.ID)
	err = b.Controller.DeleteCurrent(ctx, func(_ context.Context, doc core.DashboardDocument) bool {
		if cmd.Yes {
			return true
		}
		return confirm(g, fmt.Sprintf("Delete %q (%d widgets)? [y/N] ", doc.Name, len(doc.Widgets)))
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(g.stdout(), "deleted %s\n", cmd.ID)
	return nil
}

func confirm(g *Globals, prompt string) bool {
	fmt.Fprint(g.stdout(), prompt)
	line, _ := bufio.NewReader(g.stdin()).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "o", "oui":
		return true
	}
	return false
}

type exportCmd struct {
	ID  string `arg:"" optional:"" help:"Dashboard id; the first dashboard when omitted."`
	Out string `short:"o" type:"path" help:"Output file; derived from the dashboard name when omitted."`
}

func (cmd *exportCmd) Run(ctx context.Context, g *Globals) error {
	b, closeFn, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	if cmd.ID != "" {
		b.Controller.SelectDashboard(ctx, cmd.ID)
	}
	doc, err := b.Controller.Current(ctx)
	if err != nil {
		return err
	}
	out := cmd.Out
	if out == "" {
		out = export.FileName(doc)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("boardctl: mkdir %s: %w", filepath.Dir(out), err)
	}
	f, err := os.Create(out) //nolint:gosec
	if err != nil {
		return fmt.Errorf("boardctl: create %s: %w", out, err)
	}
	if err := export.WriteXLSX(f, doc); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("boardctl: close %s: %w", out, err)
	}
	fmt.Fprintf(g.stdout(), "wrote %s\n", out)
	return nil
}
