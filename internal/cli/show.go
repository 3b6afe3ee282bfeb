package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/temcen/crosssale/internal/overlay"
	"github.com/temcen/crosssale/pkg/models"
)

var (
	showFlags queryFlags
	showTitle string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Walk through recommendations in an interactive overlay",
	Long: `Fetch recommendations and show them in a console overlay.

Commands read from stdin:
  accept N   add entry N to the check
  hide       hide the overlay
  reshow     bring a hidden overlay back
  close, q   close the overlay and report the outcome

The report is sent when the overlay closes, including when the last entry is
accepted or stdin ends.`,
	Args: cobra.NoArgs,
	RunE: runShow,
}

func init() {
	showFlags.register(showCmd)
	showCmd.Flags().StringVar(&showTitle, "title", "You may also like", "overlay title")
	_ = showCmd.MarkFlagRequired("sex")
}

var errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")).Bold(true)

func runShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	catalog, err := showFlags.loadCatalog()
	if err != nil {
		return err
	}

	client := newClient()
	records, err := showFlags.fetch(ctx, client)
	if err != nil {
		return fmt.Errorf("fetch recommendations: %w", err)
	}

	out := cmd.OutOrStdout()
	renderer := NewConsoleRenderer(out, showTitle, cfg.Overlay.AlphaCoefficient)
	notifier := overlay.NotifierFunc(func(_ context.Context, err error) {
		fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("Could not report the outcome: "+err.Error()))
	})
	manager := overlay.NewManager(client, func(any) overlay.Renderer { return renderer }, notifier, logger)

	_, err = manager.Open(ctx, overlay.OpenRequest{
		Anchor:    out,
		ClientSex: models.ClientSex(showFlags.sex),
		Products:  catalog.ProductInfos(records),
		OnAccept: func(info models.ProductInfo) {
			fmt.Fprintf(out, "Added %s to the check.\n", DisplayName(info.Name))
		},
	})
	if err != nil {
		return fmt.Errorf("open overlay: %w", err)
	}

	return runShowLoop(ctx, cmd.InOrStdin(), out, manager, renderer)
}

// runShowLoop drives the live session from line commands until it closes.
func runShowLoop(ctx context.Context, in io.Reader, out io.Writer, manager *overlay.Manager, renderer *ConsoleRenderer) error {
	scanner := bufio.NewScanner(in)

	for {
		session := manager.Current()
		if session == nil {
			return nil
		}

		if !scanner.Scan() {
			manager.Close(ctx)
			return scanner.Err()
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch strings.ToLower(fields[0]) {
		case "accept", "a":
			if err := acceptEntry(ctx, session, renderer, fields[1:]); err != nil {
				fmt.Fprintln(out, errorStyle.Render(err.Error()))
			}
		case "hide", "h":
			manager.Hide()
		case "reshow", "r":
			manager.Reshow()
		case "close", "q", "quit":
			session.UserClose(ctx)
		default:
			fmt.Fprintf(out, "unknown command %q\n", fields[0])
		}
	}
}

func acceptEntry(ctx context.Context, session *overlay.Session, renderer *ConsoleRenderer, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: accept N")
	}

	n, err := strconv.Atoi(args[0])
	entries := renderer.Entries()
	if err != nil || n < 1 || n > len(entries) {
		return fmt.Errorf("no entry %s", args[0])
	}

	return session.Accept(ctx, entries[n-1])
}
