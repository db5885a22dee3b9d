package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

func (k statusKind) tag() string {
	switch k {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func (k statusKind) color() string {
	switch k {
	case statusOK:
		return "\x1b[32m"
	case statusWarn:
		return "\x1b[33m"
	case statusError:
		return "\x1b[31m"
	default:
		return "\x1b[34m"
	}
}

const ansiReset = "\x1b[0m"

// painter writes aligned label/status lines, coloring the status tag when the
// destination is a terminal.
type painter struct {
	out   io.Writer
	color bool
}

func newPainter(out io.Writer) *painter {
	color := false
	if file, ok := out.(*os.File); ok {
		fd := file.Fd()
		color = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
	return &painter{out: out, color: color}
}

func (p *painter) section(title string) {
	banner := "== " + strings.TrimSpace(title) + " =="
	rule := strings.Repeat("-", len(banner))
	if p.color {
		banner = "\x1b[34m" + banner + ansiReset
		rule = "\x1b[34m" + rule + ansiReset
	}
	fmt.Fprintln(p.out, banner)
	fmt.Fprintln(p.out, rule)
}

func (p *painter) field(label string, kind statusKind, message string) {
	tag := "[" + kind.tag() + "]"
	if p.color {
		tag = kind.color() + tag + ansiReset
	}
	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(label)
	b.WriteByte(':')
	for pad := len(label) + 1; pad < 18; pad++ {
		b.WriteByte(' ')
	}
	b.WriteByte(' ')
	b.WriteString(tag)
	if message != "" {
		b.WriteByte(' ')
		b.WriteString(message)
	}
	fmt.Fprintln(p.out, b.String())
}

func (p *painter) blank() {
	fmt.Fprintln(p.out)
}
