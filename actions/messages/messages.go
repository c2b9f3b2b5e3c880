package messages

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/urfave/cli/v3"

	"github.com/go-smartschool/go-smartschool/actions"
	"github.com/go-smartschool/go-smartschool/client"
)

const (
	colorReset   = "\033[0m"
	colorBold    = "\033[1m"
	colorDim     = "\033[2m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
	colorWhite   = "\033[37m"
)

var MessagesCommand = &cli.Command{
	Name:    "messages",
	Aliases: []string{"inbox", "berichten"},
	Usage:   "Read and manage your Smartschool messages",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:    "box",
			Aliases: []string{"b"},
			Value:   string(client.BoxInbox),
			Usage:   "Mailbox: inbox, draft, scheduled, outbox or trash",
		},
		&cli.BoolFlag{
			Name:    "list",
			Aliases: []string{"l"},
			Usage:   "Print the message list and exit",
		},
		&cli.StringFlag{
			Name:  "download-dir",
			Value: ".",
			Usage: "Where attachments are saved",
		},
	}, actions.SessionFlags()...),
	Action: messagesAction,
}

type mailbox struct {
	session     *client.Session
	box         client.BoxType
	downloadDir string
	reader      *bufio.Reader

	headers     []client.ShortMessage
	lastRefresh time.Time
}

func messagesAction(ctx context.Context, cmd *cli.Command) error {
	box, err := parseBox(cmd.String("box"))
	if err != nil {
		return err
	}

	s, err := actions.OpenSession(ctx, cmd)
	if err != nil {
		fmt.Printf("%s✗ %v%s\n", colorRed, err, colorReset)
		return nil
	}

	m := &mailbox{
		session:     s,
		box:         box,
		downloadDir: cmd.String("download-dir"),
		reader:      bufio.NewReader(os.Stdin),
	}

	if err := m.refresh(ctx); err != nil {
		return err
	}
	if cmd.Bool("list") {
		displayHeaders(m.headers, s.Now())
		return nil
	}

	return m.runInteractiveMode(ctx)
}

func parseBox(name string) (client.BoxType, error) {
	switch box := client.BoxType(strings.ToLower(name)); box {
	case client.BoxInbox, client.BoxDraft, client.BoxScheduled, client.BoxSent, client.BoxTrash:
		return box, nil
	}
	return "", fmt.Errorf("unknown mailbox %q", name)
}

func (m *mailbox) refresh(ctx context.Context) error {
	headers, err := m.session.MessageHeaders(ctx, client.MessageListOptions{Box: m.box})
	if err != nil {
		if m.headers != nil {
			fmt.Printf("%s⚠ Using previous list (fetch failed: %v)%s\n", colorYellow, err, colorReset)
			return nil
		}
		return fmt.Errorf("failed to fetch %s: %w", m.box, err)
	}
	m.headers = headers
	m.lastRefresh = m.session.Now()
	return nil
}

func (m *mailbox) runInteractiveMode(ctx context.Context) error {
	clearScreen()

	for {
		displayHeaders(m.headers, m.session.Now())

		ago := m.session.Now().Sub(m.lastRefresh).Round(time.Second)
		fmt.Printf("%s  📋 %s, fetched %s ago%s\n", colorDim, m.box, ago, colorReset)

		fmt.Printf("\n%s%s%s\n", colorDim, strings.Repeat("─", 80), colorReset)
		fmt.Printf("%sCommands:%s [number] Open message • %sr%s Refresh • %sq%s Quit\n",
			colorCyan, colorReset, colorGreen, colorReset, colorRed, colorReset)
		fmt.Printf("%s➜ %s", colorGreen, colorReset)

		input, _ := m.reader.ReadString('\n')
		input = strings.TrimSpace(input)

		switch strings.ToLower(input) {
		case "q", "quit", "exit":
			fmt.Printf("\n%s👋 Tot ziens!%s\n", colorCyan, colorReset)
			return nil
		case "r", "refresh":
			clearScreen()
			fmt.Printf("%s🔄 Refreshing...%s\n", colorCyan, colorReset)
			if err := m.refresh(ctx); err != nil {
				fmt.Printf("%s✗ %v%s\n", colorRed, err, colorReset)
			}
			clearScreen()
		case "":
			clearScreen()
		default:
			num, err := strconv.Atoi(input)
			if err != nil || num < 1 || num > len(m.headers) {
				fmt.Printf("%s✗ Invalid selection. Enter a number 1-%d%s\n", colorRed, len(m.headers), colorReset)
				time.Sleep(1 * time.Second)
				clearScreen()
				continue
			}

			if err := m.openMessage(ctx, m.headers[num-1]); err != nil {
				fmt.Printf("%s✗ Error: %v%s\n", colorRed, err, colorReset)
				time.Sleep(2 * time.Second)
			}

			clearScreen()
			if err := m.refresh(ctx); err != nil {
				fmt.Printf("%s✗ %v%s\n", colorRed, err, colorReset)
			}
		}
	}
}

func clearScreen() {
	fmt.Print("\033[H\033[2J")
}

func displayHeaders(headers []client.ShortMessage, now time.Time) {
	if len(headers) == 0 {
		fmt.Printf("\n%s📭 No messages found.%s\n", colorDim, colorReset)
		return
	}

	fmt.Printf("\n%s%-4s %-25s %-40s %s%s\n", colorBold, "#", "FROM", "SUBJECT", "TIME", colorReset)
	fmt.Printf("%s%s%s\n", colorDim, strings.Repeat("─", 80), colorReset)

	for i, msg := range headers {
		numColor := colorDim
		fromColor := colorWhite
		subjectColor := colorDim

		if msg.Unread {
			numColor = colorGreen
			fromColor = colorBold + colorWhite
			subjectColor = colorWhite
		}

		indicators := ""
		if msg.Attachment > 0 {
			indicators += "📎"
		}
		if msg.Label {
			indicators += "🚩"
		}
		if msg.HasReply {
			indicators += "↩"
		}

		fmt.Printf("%s%-4d%s %s%-25s%s %s%-40s%s %s%s%s %s\n",
			numColor, i+1, colorReset,
			fromColor, truncateString(msg.From, 23), colorReset,
			subjectColor, truncateString(msg.Subject, 38), colorReset,
			colorDim, formatTimeAgo(msg.Date, now), colorReset,
			indicators,
		)
	}
}

func (m *mailbox) openMessage(ctx context.Context, header client.ShortMessage) error {
	clearScreen()

	msg, err := m.session.Message(ctx, header.ID, m.box)
	if err != nil {
		return fmt.Errorf("failed to fetch message: %w", err)
	}

	var attachments []client.Attachment
	if msg.Attachment > 0 {
		if attachments, err = m.session.Attachments(ctx, msg.ID, m.box); err != nil {
			return fmt.Errorf("failed to fetch attachments: %w", err)
		}
	}

	for {
		displayMessage(msg, attachments)

		fmt.Printf("\n%s%s%s\n", colorDim, strings.Repeat("─", 80), colorReset)
		fmt.Printf("%sCommands:%s %sd%s Download attachments • %su%s Mark unread • %st%s Trash • %sb%s Back\n",
			colorCyan, colorReset,
			colorGreen, colorReset, colorGreen, colorReset, colorRed, colorReset, colorYellow, colorReset)
		fmt.Printf("%s➜ %s", colorGreen, colorReset)

		input, _ := m.reader.ReadString('\n')
		input = strings.TrimSpace(input)

		switch strings.ToLower(input) {
		case "b", "back", "":
			return nil
		case "d", "download":
			if len(attachments) == 0 {
				fmt.Printf("%sNo attachments.%s\n", colorDim, colorReset)
				time.Sleep(1 * time.Second)
			} else if err := m.download(ctx, attachments); err != nil {
				fmt.Printf("%s✗ Download failed: %v%s\n", colorRed, err, colorReset)
				time.Sleep(2 * time.Second)
			} else {
				fmt.Printf("%s✓ Saved to %s%s\n", colorGreen, m.downloadDir, colorReset)
				time.Sleep(1 * time.Second)
			}
		case "u", "unread":
			if _, err := m.session.MarkMessageUnread(ctx, msg.ID, m.box); err != nil {
				return fmt.Errorf("failed to mark unread: %w", err)
			}
			fmt.Printf("%s✓ Marked as unread%s\n", colorGreen, colorReset)
			time.Sleep(500 * time.Millisecond)
			return nil
		case "t", "trash":
			status, err := m.session.MoveMessageToTrash(ctx, msg.ID)
			if err != nil {
				return fmt.Errorf("failed to move to trash: %w", err)
			}
			if !status.IsDeleted {
				return fmt.Errorf("portal refused to delete message %d", msg.ID)
			}
			fmt.Printf("%s✓ Moved to trash%s\n", colorGreen, colorReset)
			time.Sleep(500 * time.Millisecond)
			return nil
		}
		clearScreen()
	}
}

func displayMessage(msg client.FullMessage, attachments []client.Attachment) {
	fmt.Printf("%s%s", colorBold, colorMagenta)
	fmt.Printf("╔%s╗\n", strings.Repeat("═", 62))
	fmt.Printf("║  ✉  %-56s ║\n", truncateString(msg.Subject, 56))
	fmt.Printf("╚%s╝\n", strings.Repeat("═", 62))
	fmt.Printf("%s\n", colorReset)

	fmt.Printf("%sFrom:%s %s\n", colorCyan, colorReset, msg.From)
	if len(msg.Receivers) > 0 {
		fmt.Printf("%sTo:%s   %s\n", colorCyan, colorReset, strings.Join(msg.Receivers, ", "))
	}
	if len(msg.CCReceivers) > 0 {
		fmt.Printf("%sCC:%s   %s\n", colorCyan, colorReset, strings.Join(msg.CCReceivers, ", "))
	}
	fmt.Printf("%sDate:%s %s\n\n", colorCyan, colorReset, msg.Date.Format("Mon, Jan 2 2006 15:04"))

	for _, line := range wrapText(htmlToText(msg.Body), 78) {
		fmt.Println(line)
	}

	if len(attachments) > 0 {
		fmt.Printf("\n%sAttachments:%s\n", colorBold, colorReset)
		for _, a := range attachments {
			fmt.Printf("  📎 %s %s(%s)%s\n", a.Name, colorDim, a.Size, colorReset)
		}
	}
}

func (m *mailbox) download(ctx context.Context, attachments []client.Attachment) error {
	if err := os.MkdirAll(m.downloadDir, 0755); err != nil {
		return err
	}

	reporter := NewCLIReporter()
	defer reporter.Finish()

	for i, a := range attachments {
		data, err := m.session.DownloadAttachment(ctx, a.FileID, func(read, total int64) {
			reporter.Report(client.ProgressReport{
				Name:       a.Name,
				Current:    i + 1,
				Total:      len(attachments),
				BytesRead:  read,
				TotalBytes: total,
			})
		})
		if err != nil {
			return fmt.Errorf("%s: %w", a.Name, err)
		}
		if err := os.WriteFile(filepath.Join(m.downloadDir, filepath.Base(a.Name)), data, 0644); err != nil {
			return err
		}
	}
	return nil
}

// htmlToText flattens a message body to its text, one line per block.
func htmlToText(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return body
	}
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, tr").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func wrapText(text string, maxWidth int) []string {
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		lines = append(lines, wrapLine(paragraph, maxWidth)...)
	}
	return lines
}

func wrapLine(text string, maxWidth int) []string {
	if len(text) <= maxWidth {
		return []string{text}
	}

	var lines []string
	currentLine := ""

	for _, word := range strings.Fields(text) {
		if len(currentLine)+len(word)+1 <= maxWidth {
			if currentLine == "" {
				currentLine = word
			} else {
				currentLine += " " + word
			}
			continue
		}
		if currentLine != "" {
			lines = append(lines, currentLine)
		}
		for len(word) > maxWidth {
			lines = append(lines, word[:maxWidth])
			word = word[maxWidth:]
		}
		currentLine = word
	}

	if currentLine != "" {
		lines = append(lines, currentLine)
	}

	return lines
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

func formatTimeAgo(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(diff.Hours()/24))
	case diff < 30*24*time.Hour:
		return fmt.Sprintf("%dw", int(diff.Hours()/(24*7)))
	default:
		return t.Format("Jan 2")
	}
}
