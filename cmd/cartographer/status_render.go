package main

import (
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

type checkLevel int

const (
	levelNone checkLevel = iota
	levelPass
	levelWarn
	levelFail
)

func (l checkLevel) marker() string {
	switch l {
	case levelPass:
		return "pass"
	case levelWarn:
		return "warn"
	case levelFail:
		return "FAIL"
	default:
		return ""
	}
}

func (l checkLevel) colors() text.Colors {
	switch l {
	case levelPass:
		return text.Colors{text.FgGreen}
	case levelWarn:
		return text.Colors{text.FgYellow}
	case levelFail:
		return text.Colors{text.FgRed, text.Bold}
	default:
		return nil
	}
}

func levelFor(passed bool) checkLevel {
	if passed {
		return levelPass
	}
	return levelFail
}

type statusRow struct {
	name   string
	level  checkLevel
	detail string
}

type statusSection struct {
	title string
	empty string
	rows  []statusRow
}

func (s *statusSection) add(name string, level checkLevel, detail string) {
	s.rows = append(s.rows, statusRow{name: name, level: level, detail: detail})
}

// statusReport is the body of `cartographer status`: one titled table per
// section, rows of name, level marker and detail.
type statusReport struct {
	sections []*statusSection
}

func (r *statusReport) section(title, empty string) *statusSection {
	s := &statusSection{title: title, empty: empty}
	r.sections = append(r.sections, s)
	return s
}

func (r *statusReport) render(colorize bool) string {
	var b strings.Builder
	for i, s := range r.sections {
		if i > 0 {
			b.WriteByte('\n')
		}
		tw := table.NewWriter()
		tw.SetStyle(table.StyleLight)
		tw.SetTitle(s.title)
		if len(s.rows) == 0 {
			tw.AppendRow(table.Row{s.empty})
		}
		for _, row := range s.rows {
			marker := row.level.marker()
			if colorize && marker != "" {
				marker = row.level.colors().Sprint(marker)
			}
			tw.AppendRow(table.Row{row.name, marker, row.detail})
		}
		b.WriteString(tw.Render())
		b.WriteByte('\n')
	}
	return b.String()
}

// colorEnabled reports whether w is a terminal and NO_COLOR is unset.
func colorEnabled(w io.Writer) bool {
	if _, off := os.LookupEnv("NO_COLOR"); off {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
