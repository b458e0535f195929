package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"paperwatch/internal/config"
	"paperwatch/internal/domain"
	"paperwatch/internal/ports"
)

const fallbackCategory = "Other"

// EmailNotifier sends HTML digest mails over SMTP with plain auth.
type EmailNotifier struct {
	cfg        config.EmailConfig
	categories []config.VenueCategory
	logger     *slog.Logger
	send       func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

var _ ports.EmailNotifier = (*EmailNotifier)(nil)

func NewEmailNotifier(cfg config.EmailConfig, categories []config.VenueCategory, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:        cfg,
		categories: categories,
		logger:     logger,
		send:       smtp.SendMail,
	}
}

// GroupByCategory assigns each paper to the first configured category whose
// keyword set matches the title or abstract, falling back to a catch-all
// group. Group order follows the configuration.
func GroupByCategory(papers []domain.Paper, categories []config.VenueCategory) map[string][]domain.Paper {
	groups := map[string][]domain.Paper{}
	for _, p := range papers {
		name := fallbackCategory
		text := strings.ToLower(p.Title + " " + p.Abstract)
		for _, cat := range categories {
			if matchesAny(text, cat.Keywords) {
				name = cat.Name
				break
			}
		}
		groups[name] = append(groups[name], p)
	}
	return groups
}

func matchesAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// SendFeedDigest mails the newly delivered feed-subscription batch.
func (n *EmailNotifier) SendFeedDigest(ctx context.Context, papers []domain.Paper) error {
	if len(papers) == 0 {
		return nil
	}
	subject := fmt.Sprintf("%s %d new papers", n.cfg.SubjectPrefix, len(papers))

	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, "<h2>%d new papers matched your interests</h2>", len(papers))
	writePaperList(&b, papers)
	b.WriteString("</body></html>")

	return n.deliver(ctx, subject, b.String())
}

// SendVenueDigest mails one venue's batch grouped by the configured
// digest categories.
func (n *EmailNotifier) SendVenueDigest(ctx context.Context, venue string, papers []domain.Paper) error {
	if len(papers) == 0 {
		return nil
	}
	subject := fmt.Sprintf("%s %s: %d new papers", n.cfg.SubjectPrefix, venue, len(papers))

	groups := GroupByCategory(papers, n.categories)

	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, "<h2>%s</h2>", html.EscapeString(venue))
	for _, cat := range n.categories {
		if batch, ok := groups[cat.Name]; ok {
			fmt.Fprintf(&b, "<h3>%s (%d)</h3>", html.EscapeString(cat.Name), len(batch))
			writePaperList(&b, batch)
		}
	}
	if batch, ok := groups[fallbackCategory]; ok {
		fmt.Fprintf(&b, "<h3>%s (%d)</h3>", fallbackCategory, len(batch))
		writePaperList(&b, batch)
	}
	b.WriteString("</body></html>")

	return n.deliver(ctx, subject, b.String())
}

// SendErrorAlert mails a short failure notice so a broken scheduled run is
// noticed without log access.
func (n *EmailNotifier) SendErrorAlert(ctx context.Context, stage, detail string) error {
	subject := fmt.Sprintf("%s %s failed", n.cfg.SubjectPrefix, stage)

	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, "<h2>%s failed</h2>", html.EscapeString(stage))
	fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(detail))
	fmt.Fprintf(&b, "<p>Reported at %s.</p>", time.Now().UTC().Format(time.RFC3339))
	b.WriteString("</body></html>")

	return n.deliver(ctx, subject, b.String())
}

func writePaperList(b *strings.Builder, papers []domain.Paper) {
	b.WriteString("<ul>")
	for _, p := range papers {
		fmt.Fprintf(b, `<li><a href="%s">%s</a>`, p.URL, html.EscapeString(p.Title))
		if names := p.AuthorNames(); len(names) > 0 {
			fmt.Fprintf(b, "<br/><i>%s</i>", html.EscapeString(strings.Join(names, ", ")))
		}
		b.WriteString("</li>")
	}
	b.WriteString("</ul>")
}

func (n *EmailNotifier) deliver(ctx context.Context, subject, htmlBody string) error {
	if !n.cfg.Complete() {
		return fmt.Errorf("email configuration incomplete")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	headers := []string{
		"From: " + n.cfg.Username,
		"To: " + n.cfg.Recipient,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
	}
	msg := strings.Join(headers, "\r\n") + "\r\n\r\n" + htmlBody

	addr := fmt.Sprintf("%s:%d", n.cfg.SMTPServer, n.cfg.Port)
	auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.SMTPServer)
	if err := n.send(addr, auth, n.cfg.Username, []string{n.cfg.Recipient}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	if n.logger != nil {
		n.logger.Info("digest sent", "recipient", n.cfg.Recipient, "subject", subject)
	}
	return nil
}
