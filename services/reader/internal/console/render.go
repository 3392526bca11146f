package console

import (
	"fmt"
	"text/tabwriter"

	"github.com/VVITTRC/Textbook-reading-club/pkg/domain"
	"github.com/VVITTRC/Textbook-reading-club/services/reader/internal/dashboard"
	"github.com/VVITTRC/Textbook-reading-club/services/reader/internal/panel"
	"github.com/VVITTRC/Textbook-reading-club/services/reader/internal/picker"
)

func (c *Console) renderDashboard(state dashboard.State) {
	s := state.Stats
	fmt.Fprintf(c.out, "Users: %d  Cohorts: %d  Notes: %d  Messages: %d\n",
		s.TotalUsers, s.TotalCohorts, s.TotalNotes, s.TotalMessages)
	if len(state.Cohorts) == 0 {
		fmt.Fprintln(c.out, "No cohorts created yet. Create your first cohort to get started!")
		return
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDOCUMENT\tSTATUS")
	for _, cohort := range state.Cohorts {
		doc := "No PDF"
		if cohort.PDFFilename != nil {
			doc = *cohort.PDFFilename
		}
		status := "Inactive"
		if cohort.IsActive {
			status = "Active"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", cohort.ID, cohort.Name, doc, status)
	}
	tw.Flush()
}

func (c *Console) renderDetail(d dashboard.Detail) {
	fmt.Fprintf(c.out, "%s: %d members, %d notes, %d messages\n",
		d.Cohort.Name, d.Activity.Members, d.Activity.Notes, d.Activity.Messages)
	if len(d.Members) == 0 {
		fmt.Fprintln(c.out, "No members yet.")
		return
	}
	for _, m := range d.Members {
		fmt.Fprintf(c.out, "  %s <%s> %s\n", m.Username, m.Email, m.Role)
	}
}

func (c *Console) renderPicker(state picker.State) {
	fmt.Fprintln(c.out, "My cohorts:")
	c.renderCohortList(state.Joined, "You haven't joined any cohorts yet.")
	fmt.Fprintln(c.out, "Available cohorts:")
	c.renderCohortList(state.Available, "No other cohorts available.")
}

func (c *Console) renderCohortList(cohorts []domain.Cohort, empty string) {
	if len(cohorts) == 0 {
		fmt.Fprintf(c.out, "  %s\n", empty)
		return
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for _, cohort := range cohorts {
		fmt.Fprintf(tw, "  %d\t%s\t%s\n", cohort.ID, cohort.Name, cohort.Description)
	}
	tw.Flush()
}

func (c *Console) renderDocument(cohort domain.Cohort) {
	if !cohort.HasDocument() {
		fmt.Fprintln(c.out, "The admin hasn't uploaded a textbook for this cohort yet.")
		return
	}
	fmt.Fprintf(c.out, "Document: %s\n", c.api.DocumentURL(*cohort.PDFPath))
}

func (c *Console) renderTab() {
	tab := c.panel.ActiveTab()
	fmt.Fprintf(c.out, "[%s]\n", tab)
	if tab == panel.TabChat {
		msgs := c.panel.Messages()
		if len(msgs) == 0 {
			fmt.Fprintln(c.out, "No messages yet. Start the conversation!")
			return
		}
		for _, m := range msgs {
			fmt.Fprintf(c.out, "  User %d (%s): %s\n", m.UserID, panel.FormatTimestamp(m.CreatedAt, c.loc), m.Message)
		}
		return
	}
	notes := c.panel.Notes(tab)
	if len(notes) == 0 {
		fmt.Fprintln(c.out, "No notes yet. Add your first note below!")
		return
	}
	for _, n := range notes {
		fmt.Fprintf(c.out, "  p.%d (%s): %s\n", n.PageNumber, panel.FormatTimestamp(n.CreatedAt, c.loc), n.Content)
	}
}
