package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yuanying/epub-reader/internal/config"
	"github.com/yuanying/epub-reader/internal/library"
)

func newImportCmd(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|url>...",
		Short: "Add EPUB files or URLs to the collection",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			for _, src := range args {
				var key string
				if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
					key, err = a.lib.ImportURL(ctx, src)
				} else {
					key, err = a.lib.ImportFile(ctx, src)
				}
				if err != nil {
					return fmt.Errorf("import %s: %w", src, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", key, src)
			}
			return nil
		},
	}
}

func newListCmd(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.lib.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tTITLE\tCREATOR\tPROGRESS")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d (%.0f%%)\n",
					e.Key, e.Title, e.Creator, e.LastReadIndex, e.TotalIndex, e.Progress*100)
			}
			return tw.Flush()
		},
	}
}

func newRemoveCmd(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <key>",
		Short: "Remove a book from the collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.lib.Remove(cmd.Context(), args[0])
		},
	}
}

func newCoverCmd(flags *config.Flags) *cobra.Command {
	var (
		output string
		width  int
	)
	cmd := &cobra.Command{
		Use:   "cover <key>",
		Short: "Write a JPEG thumbnail of a book cover",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			c, err := a.lib.Cover(cmd.Context(), args[0], width)
			if err != nil {
				return err
			}
			if output == "" {
				output = args[0] + ".jpg"
			}
			if err := os.WriteFile(output, c.Data, 0o644); err != nil {
				return fmt.Errorf("failed to write cover: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%dx%d\t%s\n", output, c.Width, c.Height, c.BlurHash)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (default: <key>.jpg)")
	cmd.Flags().IntVar(&width, "width", library.DefaultCoverWidth, "Thumbnail width in pixels")
	return cmd
}

func newTocCmd(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "toc <key>",
		Short: "Print the table of contents of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			b, err := a.lib.Open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer b.Release()
			if err := b.LoadContent(cmd.Context(), false); err != nil {
				return err
			}
			for _, n := range b.Navigation {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", n.Text, n.Href)
			}
			return nil
		},
	}
}
