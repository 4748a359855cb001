package cli

import (
	"github.com/portalkeeper/portalkeeper/internal/client/orchestrator"
)

// printStatus рендерит итог одного прогона orchestrator'а:
// текущее состояние, кто залогинен и что делать дальше.
func (c *Cli) printStatus(status orchestrator.Status) {
	c.io.Printf("State: %s\n", status.State)

	if status.User.Username != "" {
		c.io.Printf("Username: %s\n", status.User.Username)
	}
	if status.User.PhoneNumber != "" {
		c.io.Printf("Phone: %s\n", maskPhone(status.User.PhoneNumber))
	}
	if status.Message != "" {
		c.io.Printf("Note: %s\n", status.Message)
	}

	c.io.Println()
	switch status.NextAction {
	case orchestrator.ActionNone:
		c.io.Println("✓ You are online.")
	case orchestrator.ActionLogin:
		c.io.Println("Run 'portalkeeper login' to authenticate.")
	case orchestrator.ActionVerifySMS:
		c.io.Println("A verification code was sent to your phone.")
		c.io.Println("Run 'portalkeeper verify' to enter it, or 'portalkeeper resend' for a new one.")
	case orchestrator.ActionPay:
		c.io.Println("A subscription payment is required.")
		if status.PaymentURL != "" {
			c.io.Printf("Open this page in a browser: %s\n", status.PaymentURL)
		}
		c.io.Println("Run 'portalkeeper pay' once the payment is done.")
	}
}

// maskPhone показывает только последние 4 цифры номера
func maskPhone(phone string) string {
	if len(phone) < 4 {
		return "****"
	}
	masked := make([]byte, len(phone)-4)
	for i := range masked {
		masked[i] = '*'
	}
	return string(masked) + phone[len(phone)-4:]
}
