package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/portalkeeper/portalkeeper/internal/client/orchestrator"
	"github.com/portalkeeper/portalkeeper/internal/client/verify"
)

func (c *Cli) runPay(ctx context.Context) error {
	c.io.Println("=== Subscription Payment ===")
	c.io.Println()

	status, err := c.orch.Run(ctx)
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if status.NextAction != orchestrator.ActionPay {
		c.io.Println("No payment is pending.")
		c.printStatus(status)
		return nil
	}

	cred, err := c.loginCredential(ctx)
	if err != nil {
		return err
	}

	if status.PaymentURL != "" {
		c.io.Printf("Open this page in a browser to pay: %s\n", status.PaymentURL)
		c.io.Println()
	}

	done, err := c.io.ReadConfirm("Have you completed the payment?", true)
	if err != nil {
		return fmt.Errorf("failed to read answer: %w", err)
	}
	if !done {
		c.io.Println("Run 'portalkeeper pay' again once the payment is done.")
		return nil
	}

	c.io.Println("Checking payment status...")

	outcome, err := c.payment.HandleMessage(ctx, cred, verify.Message{
		Origin: c.trustedOrigin,
		Type:   verify.MessagePaymentClose,
	})
	switch {
	case errors.Is(err, verify.ErrPaymentPending):
		c.io.Println("The payment is still being processed. Try again in a minute.")
		return nil
	case errors.Is(err, verify.ErrPaymentFailed):
		return fmt.Errorf("payment was not completed: %w", err)
	case err != nil:
		return err
	}

	c.io.Println()
	c.io.Println("✓ Payment confirmed!")

	if outcome.RepeatLogin {
		c.io.Println("Re-establishing network access...")
	}

	// Следующий прогон закрывает старую шлюзовую сессию (если платеж
	// этого требует) и доводит flow до нового login.
	status, err = c.orch.Run(ctx)
	if err != nil {
		return err
	}
	c.io.Println()
	c.printStatus(status)

	return nil
}
