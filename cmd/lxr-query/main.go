// Command lxr-query is the read-path CLI of spec §6: stats, versions,
// ident and file, each a thin wrapper over internal/query. Its
// subcommand layout follows cmd/rpcdaemon/main.go's cobra root-command
// idiom (PersistentFlags bound once, one RunE per leaf command).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/bootlin/elixir/internal/family"
	"github.com/bootlin/elixir/internal/kvstore"
	"github.com/bootlin/elixir/internal/logx"
	"github.com/bootlin/elixir/internal/parseadapter"
	"github.com/bootlin/elixir/internal/query"
	"github.com/bootlin/elixir/internal/vcsadapter"
)

var (
	datadir     string
	vcsScript   string
	parseScript string
)

func main() {
	root := &cobra.Command{
		Use:   "lxr-query",
		Short: "query an elixir kv store",
	}
	root.PersistentFlags().StringVar(&datadir, "datadir", "", "kv store directory")
	root.PersistentFlags().StringVar(&vcsScript, "vcs-script", "", "path to the get-* line-protocol script")
	root.PersistentFlags().StringVar(&parseScript, "parse-script", "", "path to the tokenize/parse-* line-protocol script")
	_ = root.MarkPersistentFlagRequired("datadir")
	_ = root.MarkPersistentFlagRequired("vcs-script")
	_ = root.MarkPersistentFlagRequired("parse-script")

	root.AddCommand(statsCmd(), versionsCmd(), identCmd(), fileCmd())

	if err := root.Execute(); err != nil {
		logx.Error("lxr-query failed", "err", err)
		os.Exit(1)
	}
}

func openEngine() (kvstore.KV, *query.Engine, error) {
	ctx := context.Background()
	kv, err := kvstore.Open(ctx, datadir, kvstore.ReadOnly)
	if err != nil {
		return nil, nil, fmt.Errorf("open kv store: %w", err)
	}
	vcs := vcsadapter.New(vcsScript, 4)
	parse := parseadapter.New(parseScript, 4)
	return kv, query.NewEngine(kv, vcs, parse), nil
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "report per-bucket key counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, _, err := openEngine()
			if err != nil {
				return err
			}
			defer kv.Close()

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"bucket", "keys"})
			ctx := context.Background()
			for _, b := range kvstore.AllBuckets() {
				var n uint64
				if err := kv.View(ctx, func(tx kvstore.Tx) error {
					var err error
					n, err = tx.Bucket(b).Len()
					return err
				}); err != nil {
					return err
				}
				table.Append([]string{b, fmt.Sprintf("%d", n)})
			}
			table.Render()
			return nil
		},
	}
}

func versionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions",
		Short: "list indexed tags, grouped by topmenu/submenu",
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, e, err := openEngine()
			if err != nil {
				return err
			}
			defer kv.Close()

			q := e.New()
			tops, err := q.Versions(context.Background())
			if err != nil {
				return err
			}
			for _, top := range tops {
				fmt.Println(top.Name)
				for _, t := range top.Tags {
					fmt.Printf("  %s\n", t)
				}
				for _, sub := range top.Submenus {
					fmt.Printf("  %s\n", sub.Name)
					for _, t := range sub.Tags {
						fmt.Printf("    %s\n", t)
					}
				}
			}
			return nil
		},
	}
}

func identCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ident <version> <ident> <family>",
		Short: "search definitions, references and doc-comments of an identifier",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, ident, famArg := args[0], args[1], args[2]
			fam, ok := family.ParseFamily(famArg)
			if !ok {
				return fmt.Errorf("unknown family %q", famArg)
			}

			kv, e, err := openEngine()
			if err != nil {
				return err
			}
			defer kv.Close()

			q := e.New()
			ctx := context.Background()
			bold := color.New(color.Bold)

			if fam == family.B {
				res, err := q.CompatibleLookup(ctx, tag, ident)
				if err != nil {
					return err
				}
				bold.Println("Compatible definitions (C):")
				for _, d := range res.CDefinitions {
					fmt.Printf("  %s:%d\n", d.Path, d.Line)
				}
				bold.Println("Compatible usages (DTS):")
				for _, d := range res.DReferences {
					fmt.Printf("  %s:%d\n", d.Path, d.Line)
				}
				bold.Println("Bindings documentation:")
				for _, d := range res.BDocComments {
					fmt.Printf("  %s:%d\n", d.Path, d.Line)
				}
				return nil
			}

			res, err := q.SearchIdent(ctx, tag, ident, fam)
			if err != nil {
				return err
			}
			bold.Println("Definitions:")
			for _, d := range res.Definitions {
				fmt.Printf("  %s:%d (%s)\n", d.Path, d.Line, d.Kind)
			}
			bold.Println("References:")
			for _, r := range res.References {
				fmt.Printf("  %s:%d\n", r.Path, r.Line)
			}
			bold.Println("Documentation:")
			for _, d := range res.DocComments {
				fmt.Printf("  %s:%d\n", d.Path, d.Line)
			}
			return nil
		},
	}
	return cmd
}

func fileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "file <version> <path>",
		Short: "print a file's contents at a given tag",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, path := args[0], args[1]
			kv, e, err := openEngine()
			if err != nil {
				return err
			}
			defer kv.Close()

			q := e.New()
			ctx := context.Background()
			exists, err := q.FileExists(ctx, tag, path)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("%s does not exist at %s", path, tag)
			}
			content, err := q.GetTokenizedFile(ctx, tag, path)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(content)
			return err
		},
	}
}
