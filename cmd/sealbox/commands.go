package main

import (
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/alexjbarnes/sealbox/internal/errors"
	"github.com/alexjbarnes/sealbox/internal/watch"
)

func (a *app) useCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use [collection-id]",
		Short: "List collections, or select one and remember it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if len(args) == 0 {
				colls, err := a.e.Collections(ctx)
				if err != nil {
					return err
				}

				preferred, err := a.state.PreferredCollection()
				if err != nil {
					a.logger.Warn("reading preferred collection", slog.String("error", err.Error()))
				}

				for _, c := range colls {
					marker := " "
					if c.ID == preferred {
						marker = "*"
					}

					fmt.Fprintf(a.out, "%s %s\t%s\n", marker, c.ID, c.Name)
				}

				return nil
			}

			if err := a.unlock(ctx); err != nil {
				return err
			}

			c, err := a.e.UseCollection(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "using %s (%s)\n", c.Name, c.ID)

			return nil
		},
	}
}

func (a *app) treeCmd() *cobra.Command {
	var focus string

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show a directory or file with its parents and children",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := a.e.Browse(cmd.Context(), focus)
			if err != nil {
				return err
			}

			return renderTree(a.out, a.e.ActiveCollection(), t)
		},
	}

	cmd.Flags().StringVar(&focus, "focus", "", "directory or file id, defaults to the root")

	return cmd
}

func (a *app) mkdirCmd() *cobra.Command {
	var parent string

	cmd := &cobra.Command{
		Use:   "mkdir <name>",
		Short: "Create a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.e.CreateDirectory(cmd.Context(), parent, args[0])
			if err != nil {
				return err
			}

			return renderUnit(a.out, d)
		},
	}

	cmd.Flags().StringVar(&parent, "parent", "", "parent directory id, defaults to the root")

	return cmd
}

// detectMime prefers the extension and falls back to content sniffing.
func detectMime(path string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}

	return http.DetectContentType(data)
}

func (a *app) uploadCmd() *cobra.Command {
	var parent, name, mimeType string

	cmd := &cobra.Command{
		Use:   "upload <path>",
		Short: "Encrypt and upload a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}

			if name == "" {
				name = filepath.Base(path)
			}

			if mimeType == "" {
				mimeType = detectMime(path, data)
			}

			f, err := a.e.Upload(cmd.Context(), parent, name, mimeType, data)
			if err != nil {
				return err
			}

			return renderUnit(a.out, f)
		},
	}

	cmd.Flags().StringVar(&parent, "parent", "", "directory id, defaults to the root")
	cmd.Flags().StringVar(&name, "name", "", "remote name, defaults to the local base name")
	cmd.Flags().StringVar(&mimeType, "mime", "", "MIME type, detected when empty")

	return cmd
}

func (a *app) updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <file-id> <path>",
		Short: "Upload a local file as a new version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[1], err)
			}

			f, err := a.e.UpdateFile(cmd.Context(), args[0], data)
			if err != nil {
				return err
			}

			return renderUnit(a.out, f)
		},
	}
}

func (a *app) downloadCmd() *cobra.Command {
	var version, output string

	cmd := &cobra.Command{
		Use:   "download <file-id>",
		Short: "Download, decrypt and verify a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dl, err := a.e.Download(cmd.Context(), args[0], version)
			if err != nil {
				return err
			}

			if output == "-" {
				_, err := a.out.Write(dl.Data)
				return err
			}

			path := output
			if path == "" {
				path = filepath.Base(dl.Name)
			}

			if err := os.WriteFile(path, dl.Data, 0o600); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}

			fmt.Fprintf(a.out, "wrote %s (%d bytes)\n", path, len(dl.Data))

			return nil
		},
	}

	cmd.Flags().StringVar(&version, "version-id", "", "version id, defaults to the latest")
	cmd.Flags().StringVarP(&output, "output", "o", "", `output path, "-" for stdout, defaults to the remote name`)

	return cmd
}

func (a *app) renameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a file or directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.e.Rename(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			return renderUnit(a.out, u)
		},
	}
}

// rmCmd selects the named children of parent and deletes the selection.
func (a *app) rmCmd() *cobra.Command {
	var (
		parent    string
		recursive bool
	)

	cmd := &cobra.Command{
		Use:   "rm <id>...",
		Short: "Delete units that share a parent",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			t, err := a.e.Browse(ctx, parent)
			if err != nil {
				return err
			}

			sel := a.e.Selection()
			sel.Clear()

			for _, id := range args {
				u, ok := t.Child(id)
				if !ok {
					return apperrors.Newf(apperrors.FileNotFound, "rm", "%s is not a child of %s", id, describeParent(parent))
				}

				sel.Add(u)
			}

			deleted, err := a.e.DeleteSelection(ctx, parent, recursive)
			for _, id := range deleted {
				fmt.Fprintf(a.out, "deleted %s\n", id)
			}

			if be, ok := apperrors.AsBatchDelete(err); ok {
				for _, f := range be.Errors {
					fmt.Fprintf(a.errOut, "failed %s: %v\n", f.ID, f.Err)
				}
			}

			return err
		},
	}

	cmd.Flags().StringVar(&parent, "parent", "", "directory holding the units, defaults to the root")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "delete non-empty directories")

	return cmd
}

func describeParent(id string) string {
	if id == "" {
		return "the root"
	}

	return id
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <file-id> <path>",
		Short: "Upload a new version whenever path changes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			w, err := watch.New(args[1], args[0], a.e, watch.Options{Logger: a.logger})
			if err != nil {
				return err
			}

			err = w.Watch(ctx)
			if ctx.Err() != nil {
				return nil
			}

			return err
		},
	}
}

// serveCmd runs the MCP server and any linked-file watchers until the
// context is cancelled.
func (a *app) serveCmd() *cobra.Command {
	var specs []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server and linked-file watchers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			links := make([]link, 0, len(specs))

			for _, s := range specs {
				l, err := parseLink(s)
				if err != nil {
					return err
				}

				links = append(links, l)
			}

			if !a.cfg.EnableMCP && len(links) == 0 {
				return fmt.Errorf("nothing to serve: set ENABLE_MCP=true or pass --watch")
			}

			g, gctx := errgroup.WithContext(cmd.Context())

			if a.cfg.EnableMCP {
				g.Go(func() error {
					return runMCP(gctx, a.cfg, a.e, a.logger)
				})
			}

			for _, l := range links {
				w, err := watch.New(l.path, l.fileID, a.e, watch.Options{Logger: a.logger})
				if err != nil {
					return err
				}

				g.Go(func() error {
					err := w.Watch(gctx)
					if gctx.Err() != nil {
						return nil
					}

					return err
				})
			}

			return g.Wait()
		},
	}

	cmd.Flags().StringArrayVar(&specs, "watch", nil, "file-id=path to keep uploading while serving, repeatable")

	return cmd
}

// link pairs a remote file with a local path.
type link struct {
	fileID string
	path   string
}

func parseLink(v string) (link, error) {
	id, path, ok := strings.Cut(v, "=")
	if !ok || id == "" || path == "" {
		return link{}, fmt.Errorf("invalid link %q, want file-id=path", v)
	}

	return link{fileID: id, path: path}, nil
}

func (a *app) historyCmd() *cobra.Command {
	var (
		n        int
		clearAll bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent operations",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if clearAll {
				return a.state.ClearHistory()
			}

			records, err := a.state.History(n)
			if err != nil {
				return err
			}

			return renderHistory(a.out, records)
		},
	}

	cmd.Flags().IntVarP(&n, "count", "n", 20, "number of records")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "delete all records")

	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the selected collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.e.Logout(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintln(a.out, "logged out")

			return nil
		},
	}
}
