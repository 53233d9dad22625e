package notify

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// Mailer sends price alert emails over SMTP. It makes one delivery
// attempt per call; retry policy belongs to the caller, which simply
// re-evaluates undeleted alerts on its next pass.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewMailer creates a new SMTP mailer
func NewMailer(host string, port int, username, password, from string) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// Send delivers a price alert to the recipient. A non-nil return means
// the notification did not go out and the alert must stay alive.
func (m *Mailer) Send(recipient, symbol string, currentPrice, targetPrice float64) error {
	if m.dialer.Host == "" {
		return fmt.Errorf("smtp host not configured")
	}

	change := currentPrice - targetPrice
	changePct := 0.0
	if targetPrice > 0 {
		changePct = change / targetPrice * 100
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", recipient)
	msg.SetHeader("Subject", fmt.Sprintf("%s Price Alert: $%.2f", symbol, currentPrice))
	msg.SetBody("text/plain", fmt.Sprintf(
		`PRICE ALERT: %s

Your target price has been reached!

Current Price:    $%.2f
Your Target:      $%.2f
Exceeded By:      +$%.2f (%+.2f%%)

This is an automated alert from Crypto Price Tracker.
This alert has been removed after triggering.
`, symbol, currentPrice, targetPrice, change, changePct))
	msg.AddAlternative("text/html", fmt.Sprintf(
		`<html>
  <body style="font-family: Arial, sans-serif;">
    <h2>Price Target Reached</h2>
    <p><strong>%s</strong> is now at <strong>$%.2f</strong>.</p>
    <table cellpadding="6">
      <tr><td>Your Target Price</td><td>$%.2f</td></tr>
      <tr><td>Current Price</td><td>$%.2f</td></tr>
      <tr><td>Exceeded By</td><td>+$%.2f (%+.2f%%)</td></tr>
    </table>
    <p style="color: #64748b; font-size: 13px;">
      Automated alert from Crypto Price Tracker.
      This alert has been removed after triggering.
    </p>
  </body>
</html>`, symbol, currentPrice, targetPrice, currentPrice, change, changePct))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send alert email to %s: %w", recipient, err)
	}
	return nil
}
