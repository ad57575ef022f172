package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yuanying/epub-reader/internal/config"
	"github.com/yuanying/epub-reader/internal/content"
	"github.com/yuanying/epub-reader/internal/reader"
)

const readHelp = `commands: n/j next, p/k previous, g N go to page, para N go to paragraph,
resize H, s OFFSET scroll, mode paginated|continuous, q quit`

func newReadCmd(flags *config.Flags) *cobra.Command {
	var (
		width  float64
		height float64
	)
	cmd := &cobra.Command{
		Use:   "read <key>",
		Short: "Read a book interactively",
		Long: `Read a book interactively. Commands are read from stdin, one per line:

  n, j          next page
  p, k          previous page
  g N           go to page N
  para N        go to paragraph N
  resize H      change the viewport height
  s OFFSET      scroll to OFFSET (continuous mode)
  mode M        switch to "paginated" or "continuous"
  q             quit`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			prefs, err := a.store.LoadSettings(ctx)
			if err != nil {
				return err
			}
			b, err := a.lib.Open(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			s := reader.New(a.store, prefs, &terminal{w: out},
				reader.WithViewport(width, height),
				reader.WithScheduler(lineScheduler{}),
				reader.WithLogger(a.logger))
			defer s.Close()
			if err := s.SetBook(ctx, b); err != nil {
				return err
			}
			return runReadLoop(cmd.InOrStdin(), out, s)
		},
	}
	cmd.Flags().Float64Var(&width, "width", 720, "Viewport width")
	cmd.Flags().Float64Var(&height, "height", 1280, "Viewport height")
	return cmd
}

func runReadLoop(in io.Reader, out io.Writer, s *reader.Session) error {
	bus := s.Bus()
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		arg := func() (float64, bool) {
			if len(fields) < 2 {
				fmt.Fprintf(out, "%s needs an argument\n", fields[0])
				return 0, false
			}
			v, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				fmt.Fprintf(out, "invalid number %q\n", fields[1])
				return 0, false
			}
			return v, true
		}

		switch fields[0] {
		case "q", "quit":
			return nil
		case "n", "j":
			bus.Publish(reader.KeyEvent{Key: "ArrowRight"})
		case "p", "k":
			bus.Publish(reader.KeyEvent{Key: "ArrowLeft"})
		case "g":
			if v, ok := arg(); ok {
				s.GoTo(int(v) - 1)
			}
		case "para":
			if v, ok := arg(); ok {
				s.GoToParagraph(int(v) - 1)
			}
		case "resize":
			if v, ok := arg(); ok {
				bus.Publish(reader.ResizeEvent{Height: v})
			}
		case "s":
			if v, ok := arg(); ok {
				bus.Publish(reader.ScrollEvent{Offset: v})
			}
		case "mode":
			if len(fields) < 2 || (fields[1] != "paginated" && fields[1] != "continuous") {
				fmt.Fprintln(out, "mode must be paginated or continuous")
				continue
			}
			if err := s.SetPaginated(fields[1] == "paginated"); err != nil {
				return err
			}
		default:
			fmt.Fprintln(out, readHelp)
		}
	}
	return sc.Err()
}

// lineScheduler runs the scroll settle immediately: in a line-driven
// terminal every scroll command is already a finished gesture.
type lineScheduler struct{}

func (lineScheduler) AfterFunc(_ time.Duration, f func()) reader.Timer {
	f()
	return stoppedTimer{}
}

type stoppedTimer struct{}

func (stoppedTimer) Stop() bool { return false }

// terminal renders session views as plain text.
type terminal struct {
	w io.Writer
}

func (t *terminal) Render(v reader.View) {
	switch v.Mode {
	case reader.ModePaginated:
		fmt.Fprintf(t.w, "--- Page %d/%d  %s ---\n", v.PageIndex+1, v.PageCount, v.Progress)
		for _, u := range v.Units {
			fmt.Fprintln(t.w, unitText(u))
		}
	case reader.ModeContinuous:
		fmt.Fprintf(t.w, "--- offset %.0f  %s ---\n", v.Offset, v.Progress)
	}
}

func unitText(n content.Node) string {
	switch n := n.(type) {
	case *content.Image:
		if n.Ref.Broken {
			return "[missing image " + n.Ref.Name + "]"
		}
		if n.Alt != "" {
			return "[image: " + n.Alt + "]"
		}
		return "[image " + n.Ref.Name + "]"
	case *content.Heading:
		return strings.Repeat("#", n.Level) + " " + strings.TrimSpace(content.TextContent(n))
	}
	return strings.TrimSpace(content.TextContent(n))
}
