package bts

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"cellsim/internal/codec"
	"cellsim/internal/relay"
	"cellsim/internal/stats"
	"cellsim/pkg/types"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			PaddingRight(2)

	cellStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			PaddingRight(2)

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Width(16)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("2"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)
)

// ErrQuit is returned by Exec after the quit command.
var ErrQuit = errors.New("console: quit")

// Console is the operator's line-oriented command interface to a running
// base station.
type Console struct {
	relay  *relay.Relay
	stats  *stats.Collector
	listen string
	out    io.Writer
	root   *cobra.Command
}

// NewConsole creates a console writing its output to out.
func NewConsole(r *relay.Relay, collector *stats.Collector, listen string, out io.Writer) *Console {
	c := &Console{relay: r, stats: collector, listen: listen, out: out}
	c.root = c.commands()
	return c
}

func (c *Console) commands() *cobra.Command {
	root := &cobra.Command{
		Use:           "bts>",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	root.SetOut(c.out)
	root.SetErr(c.out)

	root.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show base station identity and connection counts",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(c.out, c.renderStatus())
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List attached terminals",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(c.out, renderTerminals(c.relay.Attached()))
				return nil
			},
		},
		&cobra.Command{
			Use:   "call <to> <from>",
			Short: "Send a call request to a terminal on behalf of another address",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				to, from, err := parsePair(args[0], args[1])
				if err != nil {
					return err
				}
				return c.inject(codec.NewCallRequest(from, to))
			},
		},
		&cobra.Command{
			Use:   "sms <to> <from> <text...>",
			Short: "Send an SMS to a terminal on behalf of another address",
			Args:  cobra.MinimumNArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				to, from, err := parsePair(args[0], args[1])
				if err != nil {
					return err
				}
				return c.inject(codec.NewSms(from, to, strings.Join(args[2:], " ")))
			},
		},
		&cobra.Command{
			Use:   "sib",
			Short: "Broadcast system information now",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				n := c.relay.BroadcastSystemInfo()
				fmt.Fprintln(c.out, okStyle.Render(fmt.Sprintf("System information sent to %d connection(s)", n)))
				return nil
			},
		},
		&cobra.Command{
			Use:     "quit",
			Aliases: []string{"exit"},
			Short:   "Stop the base station",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return ErrQuit
			},
		},
	)
	return root
}

func parsePair(toArg, fromArg string) (types.Address, types.Address, error) {
	to, err := types.ParseAddress(toArg)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid destination: %w", err)
	}
	from, err := types.ParseAddress(fromArg)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid source: %w", err)
	}
	return to, from, nil
}

func (c *Console) inject(m codec.Message) error {
	if _, ok := c.relay.Lookup(m.Destination); !ok {
		return fmt.Errorf("terminal %s is not attached", m.Destination)
	}
	if !c.relay.Route(m) {
		return fmt.Errorf("failed to deliver %s to %s", m.ID, m.Destination)
	}
	fmt.Fprintln(c.out, okStyle.Render(fmt.Sprintf("%s sent to %s", m.ID, m.Destination)))
	return nil
}

// Exec runs one command line. It returns ErrQuit after the quit command.
func (c *Console) Exec(line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}
	c.root.SetArgs(args)
	err := c.root.Execute()
	if err != nil && !errors.Is(err, ErrQuit) {
		fmt.Fprintln(c.out, failStyle.Render("Error: "+err.Error()))
	}
	return err
}

// Run reads commands from in until it is exhausted, ctx is cancelled or the
// operator quits.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			log.WithError(err).Warn("Console input failed")
		}
	}()

	fmt.Fprint(c.out, "bts> ")
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := c.Exec(line); errors.Is(err, ErrQuit) {
				return ErrQuit
			}
			fmt.Fprint(c.out, "bts> ")
		}
	}
}

func (c *Console) renderStatus() string {
	attached, notAttached := c.relay.Counts()
	snap := c.stats.Snapshot()
	rows := [][2]string{
		{"BTS id", c.relay.BtsID().String()},
		{"Listening on", c.listen},
		{"Attached", fmt.Sprintf("%d", attached)},
		{"Not attached", fmt.Sprintf("%d", notAttached)},
		{"Frames in", fmt.Sprintf("%d", c.stats.TotalReceived())},
		{"Decode errors", fmt.Sprintf("%d", snap.DecodeFailures)},
		{"Uptime", c.stats.Duration().Truncate(time.Second).String()},
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, labelStyle.Render(r[0])+r[1])
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderTerminals(terms []relay.Terminal) string {
	if len(terms) == 0 {
		return dimStyle.Render("No terminals attached")
	}

	const (
		colAddr   = 9
		colConn   = 6
		colRemote = 24
	)
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		headerStyle.Width(colAddr).Render("ADDRESS"),
		headerStyle.Width(colConn).Render("CONN"),
		headerStyle.Width(colRemote).Render("REMOTE"),
		headerStyle.Render("ATTACHED"),
	)
	rows := []string{header}
	for _, t := range terms {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top,
			cellStyle.Width(colAddr).Render(t.Address.String()),
			cellStyle.Width(colConn).Render(fmt.Sprintf("%d", t.ID)),
			cellStyle.Width(colRemote).Render(t.Remote),
			cellStyle.Render(t.AttachedAt.Format("15:04:05")),
		))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
