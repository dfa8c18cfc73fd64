package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/lipgloss"

	"github.com/lotekdan/go-browser-inventory/internal/browsers"
)

func writeJSON(w io.Writer, out output) error {
	data, err := sonic.ConfigStd.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshalling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

type reportStyles struct {
	title   lipgloss.Style
	name    lipgloss.Style
	label   lipgloss.Style
	flagged lipgloss.Style
	clear   lipgloss.Style
	muted   lipgloss.Style
}

func newReportStyles(w io.Writer) reportStyles {
	r := lipgloss.NewRenderer(w)
	return reportStyles{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		name:    r.NewStyle().Bold(true),
		label:   r.NewStyle().Foreground(lipgloss.Color("245")),
		flagged: r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		clear:   r.NewStyle().Foreground(lipgloss.Color("10")),
		muted:   r.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

func writeText(w io.Writer, out output) error {
	var b strings.Builder
	st := newReportStyles(w)

	if len(out.Extensions) == 0 {
		b.WriteString("No extensions found.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString(st.title.Render("Browser Extensions:") + "\n")
	b.WriteString(st.muted.Render("===================") + "\n")
	for i, rec := range out.Extensions {
		ext := rec.Extension
		fmt.Fprintf(&b, "%d. %s\n", i+1, st.name.Render(ext.Name))
		field := func(label, value string) {
			if value == "" {
				return
			}
			fmt.Fprintf(&b, "   %s %s\n", st.label.Render(label+":"), value)
		}
		field("Browser", ext.Browser.DisplayName())
		field("User", ext.Username)
		field("Profile", ext.Profile)
		field("Version", ext.Version)
		field("ID", ext.ID)
		field("Kind", string(ext.Kind))
		field("Active", fmt.Sprintf("%v", ext.Active))
		field("Creator", ext.Creator)
		if ext.Risk == browsers.Flagged {
			field("Risk", st.flagged.Render(string(ext.Risk)))
		} else {
			field("Risk", st.clear.Render(string(ext.Risk)))
		}
		if ext.UserPermissions != nil {
			field("Permissions", strings.Join(ext.UserPermissions.Permissions, ", "))
			field("Origins", strings.Join(ext.UserPermissions.Origins, ", "))
		}
		for _, c := range ext.Connections {
			state := "active"
			if !c.Active {
				state = "broken"
			}
			field("Connection", fmt.Sprintf("%s (%s)", c.Domain, state))
		}
		if rec.RiskReport != nil {
			field("Risk score", fmt.Sprintf("%d (%s)", rec.RiskReport.Score, rec.RiskReport.Level))
		}
		b.WriteString(st.muted.Render("------------------") + "\n")
	}
	fmt.Fprintf(&b, "Total extensions: %d\n", out.Total)
	if out.ScanID != "" {
		fmt.Fprintf(&b, "Saved scan: %s\n", out.ScanID)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
