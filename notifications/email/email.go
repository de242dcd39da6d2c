package email

import (
	"fmt"
	"net/smtp"
)

// Mailer sends notification emails over SMTP. Construct one with NewMailer
// and pass it to whoever needs to send; there is no package-level state.
type Mailer struct {
	server string
	from   string
	auth   smtp.Auth
}

// NewMailer configures a Mailer for the given sender credentials and dials
// the SMTP server once to verify the connection works.
func NewMailer(sender, password string) (*Mailer, error) {
	m := &Mailer{
		server: "smtp.gmail.com:587",
		from:   sender,
		auth: smtp.PlainAuth(
			"",
			sender,
			password,
			"smtp.gmail.com",
		),
	}

	c, err := smtp.Dial(m.server)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to the SMTP server: %v", err)
	}
	if err := c.Close(); err != nil {
		return nil, fmt.Errorf("cannot close the SMTP connection: %v", err)
	}

	return m, nil
}

// SendTierEmail emails a parent that a child's period total has reached a
// reward tier.
func (m *Mailer) SendTierEmail(to, childName, tierLabel, marker string, total int, period string) error {
	headers := map[string]string{
		"From":         m.from,
		"To":           to,
		"Subject":      fmt.Sprintf("%s reached the %s tier!", childName, tierLabel),
		"MIME-version": "1.0",
		"Content-Type": "text/html; charset=\"UTF-8\"",
	}

	message := ""
	for k, v := range headers {
		message += fmt.Sprintf("%s: %s\r\n", k, v)
	}

	body := fmt.Sprintf(`
	<html>
		<body>
			<div style="max-width: 600px; margin: 0 auto; padding: 10px;">
				<h1>%s %s</h1>
				<p><strong>%s</strong> reached the <strong>%s</strong> reward tier
				with a total of <strong>%d</strong> points for %s.</p>
				<p>Open Sprout to see the full report.</p>
			</div>
		</body>
	</html>
	`, marker, tierLabel, childName, tierLabel, total, period)
	message += "\r\n" + body

	err := smtp.SendMail(
		m.server,
		m.auth,
		m.from,
		[]string{to},
		[]byte(message),
	)
	if err != nil {
		return fmt.Errorf("failed to send email: %v", err)
	}
	return nil
}
