package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"lexcase/internal/store"
	"lexcase/internal/textutil"
)

const markdownWrap = 100

// printMarkdown renders md for terminals and writes it unchanged elsewhere.
func printMarkdown(out io.Writer, md string) {
	if shouldColorize(out) {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(markdownWrap),
		)
		if err == nil {
			if rendered, err := renderer.Render(md); err == nil {
				fmt.Fprint(out, rendered)
				return
			}
		}
	}
	fmt.Fprint(out, md)
	if !strings.HasSuffix(md, "\n") {
		fmt.Fprintln(out)
	}
}

// caseMarkdown is the Markdown export of a case.
func caseMarkdown(c *store.Case) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", c.Name)
	writeMeta(&b, "المعرف", c.ID)
	writeMeta(&b, "نوع القضية", c.CaseType)
	writeMeta(&b, "صفة الموكل", c.PartyRole)
	writeMeta(&b, "الوسوم", strings.Join(c.Tags, "، "))
	if !c.CreatedAt.IsZero() {
		writeMeta(&b, "تاريخ الإنشاء", c.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	if !c.UpdatedAt.IsZero() {
		writeMeta(&b, "آخر تحديث", c.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	b.WriteString("\n## الوقائع\n\n")
	b.WriteString(strings.TrimSpace(c.Facts))
	b.WriteString("\n")

	if len(c.Stages) > 0 {
		b.WriteString("\n## نتائج التحليل\n")
		for _, result := range c.Stages {
			b.WriteString(stageMarkdown(result))
		}
	}
	if petition := strings.TrimSpace(c.Petition); petition != "" {
		b.WriteString("\n## العريضة النهائية\n\n")
		b.WriteString(petition)
		b.WriteString("\n")
	}
	return b.String()
}

func stageMarkdown(result store.StageResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n### المرحلة %d: %s\n\n", result.Index+1, result.Name)
	switch result.Status {
	case store.StageCompleted:
		b.WriteString(strings.TrimSpace(result.Output))
	case store.StageSkipped:
		b.WriteString("_تم تخطي هذه المرحلة_")
		if msg := textutil.FirstLine(result.ErrorMessage); msg != "" {
			fmt.Fprintf(&b, " (%s)", msg)
		}
	default:
		b.WriteString("_فشل تحليل هذه المرحلة_")
		if msg := textutil.FirstLine(result.ErrorMessage); msg != "" {
			fmt.Fprintf(&b, ": %s", msg)
		}
	}
	b.WriteString("\n")
	return b.String()
}

func writeMeta(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(b, "- **%s:** %s\n", label, value)
}
