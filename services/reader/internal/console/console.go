// Package console is a line-oriented terminal front end for the reader.
// Every failed command ends in exactly one "! <message>" line.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/VVITTRC/Textbook-reading-club/pkg/domain"
	"github.com/VVITTRC/Textbook-reading-club/services/reader/internal/dashboard"
	"github.com/VVITTRC/Textbook-reading-club/services/reader/internal/panel"
	"github.com/VVITTRC/Textbook-reading-club/services/reader/internal/picker"
	"github.com/VVITTRC/Textbook-reading-club/services/reader/internal/view"
)

// API is everything the screens call on the backend.
type API interface {
	view.Authenticator
	picker.Client
	panel.Client
	dashboard.Client
	DocumentURL(path string) string
}

type Console struct {
	api      API
	orch     *view.Orchestrator
	out      io.Writer
	loc      *time.Location
	alert    *color.Color
	notice   *color.Color
	openFile func(path string) (io.ReadCloser, error)

	screen view.Screen
	picker *picker.Picker
	panel  *panel.Panel
	dash   *dashboard.Dashboard
	page   int
}

// New builds a console writing to out. Timestamps render in loc.
func New(api API, orch *view.Orchestrator, out io.Writer, loc *time.Location) *Console {
	if loc == nil {
		loc = time.Local
	}
	return &Console{
		api:    api,
		orch:   orch,
		out:    out,
		loc:    loc,
		alert:  color.New(color.FgRed, color.Bold),
		notice: color.New(color.FgGreen),
		openFile: func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// Run restores the session, renders the first screen and executes commands
// from in until "quit", EOF or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	c.sync(ctx, c.orch.Start())
	defer c.leave()

	scanner := bufio.NewScanner(in)
	c.prompt()
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "quit" || line == "exit" {
			return nil
		}
		if line != "" {
			c.Exec(ctx, line)
		}
		if ctx.Err() != nil {
			return nil
		}
		c.prompt()
	}
	return scanner.Err()
}

// Exec runs one command against the current screen.
func (c *Console) Exec(ctx context.Context, line string) {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)
	if cmd == "help" {
		c.help()
		return
	}

	var err error
	switch screen := c.orch.Current().(type) {
	case view.Unauthenticated:
		err = c.execSignedOut(ctx, cmd, rest)
	case view.AdminHome:
		err = c.execAdmin(ctx, cmd, rest)
	case view.CohortPicker:
		err = c.execPicker(ctx, cmd, rest)
	case view.Reader:
		err = c.execReader(ctx, screen, cmd, rest)
	}
	if err != nil {
		c.fail(err)
	}
	c.sync(ctx, c.orch.Current())
}

var errUnknownCommand = errors.New("unknown command, type help")

func (c *Console) execSignedOut(ctx context.Context, cmd, rest string) error {
	args := strings.Fields(rest)
	switch cmd {
	case "login":
		if len(args) != 2 {
			return errors.New("usage: login <username> <password>")
		}
		_, err := c.orch.Login(ctx, args[0], args[1])
		return err
	case "register":
		if len(args) < 3 || len(args) > 4 {
			return errors.New("usage: register <username> <email> <password> [user|admin]")
		}
		req := domain.RegisterRequest{Username: args[0], Email: args[1], Password: args[2], Role: domain.RoleUser}
		if len(args) == 4 {
			req.Role = domain.UserRole(args[3])
		}
		_, err := c.orch.Register(ctx, req)
		return err
	}
	return errUnknownCommand
}

func (c *Console) execAdmin(ctx context.Context, cmd, rest string) error {
	switch cmd {
	case "refresh":
		c.loadDashboard(ctx)
		return nil
	case "create":
		return c.createCohort(ctx, rest)
	case "view":
		id, err := parseID(rest)
		if err != nil {
			return err
		}
		for _, cohort := range c.dash.State().Cohorts {
			if cohort.ID == id {
				detail, err := c.dash.ViewCohortDetail(ctx, cohort)
				if err != nil {
					return err
				}
				c.renderDetail(detail)
				return nil
			}
		}
		return fmt.Errorf("no cohort with id %d", id)
	case "logout":
		_, err := c.orch.Logout()
		return err
	}
	return errUnknownCommand
}

// createCohort parses "<name> [| description [| path/to/file.pdf]]".
func (c *Console) createCohort(ctx context.Context, rest string) error {
	parts := strings.SplitN(rest, "|", 3)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	name, description, path := parts[0], "", ""
	if len(parts) > 1 {
		description = parts[1]
	}
	if len(parts) > 2 {
		path = parts[2]
	}

	var doc *dashboard.Document
	if path != "" {
		f, err := c.openFile(path)
		if err != nil {
			return fmt.Errorf("open document: %w", err)
		}
		defer f.Close()
		doc = &dashboard.Document{Filename: filepath.Base(path), Content: f}
	}

	_, err := c.dash.CreateCohort(ctx, name, description, doc)
	var uploadErr *dashboard.UploadError
	switch {
	case errors.As(err, &uploadErr):
		c.renderDashboard(c.dash.State())
		return err
	case err != nil:
		return err
	}
	c.notice.Fprintln(c.out, "Cohort created successfully!")
	c.renderDashboard(c.dash.State())
	return nil
}

func (c *Console) execPicker(ctx context.Context, cmd, rest string) error {
	switch cmd {
	case "refresh":
		c.loadPicker(ctx)
		return nil
	case "join":
		id, err := parseID(rest)
		if err != nil {
			return err
		}
		state, err := c.picker.Join(ctx, id)
		if err != nil {
			return err
		}
		c.notice.Fprintln(c.out, "Successfully joined the cohort!")
		c.renderPicker(state)
		return nil
	case "open":
		id, err := parseID(rest)
		if err != nil {
			return err
		}
		cohort, ok := c.picker.JoinedCohort(id)
		if !ok {
			return fmt.Errorf("join cohort %d before opening it", id)
		}
		_, err = c.orch.SelectCohort(cohort)
		return err
	case "logout":
		_, err := c.orch.Logout()
		return err
	}
	return errUnknownCommand
}

func (c *Console) execReader(_ context.Context, screen view.Reader, cmd, rest string) error {
	switch cmd {
	case "tab":
		if err := c.panel.SwitchTab(panel.Tab(rest)); err != nil {
			return err
		}
		c.renderTab()
		return nil
	case "page":
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 {
			return errors.New("usage: page <number>")
		}
		c.page = n
		fmt.Fprintf(c.out, "Page %d\n", n)
		return nil
	case "note":
		if _, err := c.panel.SubmitNote(rest, c.page); err != nil {
			return err
		}
		c.renderTab()
		return nil
	case "say":
		if _, err := c.panel.SubmitChatMessage(rest); err != nil {
			return err
		}
		if c.panel.ActiveTab() == panel.TabChat {
			c.renderTab()
		}
		return nil
	case "doc":
		c.renderDocument(screen.Cohort)
		return nil
	case "back":
		c.orch.Back()
		return nil
	case "logout":
		_, err := c.orch.Logout()
		return err
	}
	return errUnknownCommand
}

// sync tears down the components of the previous screen and sets up the
// new one whenever the derived screen changed.
func (c *Console) sync(ctx context.Context, next view.Screen) {
	if sameScreen(c.screen, next) {
		return
	}
	c.leave()
	c.screen = next
	switch s := next.(type) {
	case view.Unauthenticated:
		fmt.Fprintln(c.out, "VVIT TR Club")
		fmt.Fprintln(c.out, "  login <username> <password>")
		fmt.Fprintln(c.out, "  register <username> <email> <password> [user|admin]")
	case view.AdminHome:
		fmt.Fprintf(c.out, "Admin dashboard (%s)\n", displayName(s.Session.Username, "Admin"))
		c.dash = dashboard.New(c.api, s.Session.UserID)
		c.loadDashboard(ctx)
	case view.CohortPicker:
		fmt.Fprintf(c.out, "Welcome, %s\n", displayName(s.Session.Username, "User"))
		c.picker = picker.New(c.api, s.Session.UserID)
		c.loadPicker(ctx)
	case view.Reader:
		c.page = 1
		fmt.Fprintf(c.out, "%s\n", s.Cohort.Name)
		c.renderDocument(s.Cohort)
		c.panel = panel.New(ctx, c.api, panel.Scope{UserID: s.Session.UserID, CohortID: s.Cohort.ID})
		if err := c.panel.Open(); err != nil {
			c.fail(err)
			return
		}
		c.renderTab()
	}
}

func (c *Console) leave() {
	if c.panel != nil {
		c.panel.Close()
	}
	c.panel, c.picker, c.dash = nil, nil, nil
}

func sameScreen(a, b view.Screen) bool {
	if a == nil || b == nil {
		return false
	}
	switch x := a.(type) {
	case view.Unauthenticated:
		_, ok := b.(view.Unauthenticated)
		return ok
	case view.AdminHome:
		y, ok := b.(view.AdminHome)
		return ok && x.Session.UserID == y.Session.UserID
	case view.CohortPicker:
		y, ok := b.(view.CohortPicker)
		return ok && x.Session.UserID == y.Session.UserID
	case view.Reader:
		y, ok := b.(view.Reader)
		return ok && x.Session.UserID == y.Session.UserID && x.Cohort.ID == y.Cohort.ID
	}
	return false
}

func (c *Console) loadDashboard(ctx context.Context) {
	fmt.Fprintln(c.out, "Loading...")
	state, err := c.dash.Load(ctx)
	if err != nil {
		c.fail(err)
		return
	}
	c.renderDashboard(state)
}

func (c *Console) loadPicker(ctx context.Context) {
	fmt.Fprintln(c.out, "Loading...")
	state, err := c.picker.Load(ctx)
	if err != nil {
		c.fail(err)
		return
	}
	c.renderPicker(state)
}

func (c *Console) fail(err error) {
	slog.Warn("command failed", "screen", screenName(c.screen), "err", err)
	c.alert.Fprintf(c.out, "! %s\n", err)
}

func (c *Console) prompt() {
	fmt.Fprintf(c.out, "%s> ", screenName(c.orch.Current()))
}

func screenName(s view.Screen) string {
	if s == nil {
		return ""
	}
	return s.Name()
}

func (c *Console) help() {
	var lines []string
	switch c.orch.Current().(type) {
	case view.Unauthenticated:
		lines = []string{"login <username> <password>", "register <username> <email> <password> [user|admin]"}
	case view.AdminHome:
		lines = []string{"refresh", "create <name> [| description [| file.pdf]]", "view <cohort id>", "logout"}
	case view.CohortPicker:
		lines = []string{"refresh", "join <cohort id>", "open <cohort id>", "logout"}
	case view.Reader:
		lines = []string{"tab private|public|chat", "page <number>", "note <text>", "say <text>", "doc", "back", "logout"}
	}
	lines = append(lines, "help", "quit")
	for _, l := range lines {
		fmt.Fprintf(c.out, "  %s\n", l)
	}
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid cohort id %q", raw)
	}
	return id, nil
}

func displayName(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}
