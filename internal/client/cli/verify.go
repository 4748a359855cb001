package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/portalkeeper/portalkeeper/internal/client/api"
	"github.com/portalkeeper/portalkeeper/internal/client/verify"
)

func (c *Cli) runVerify(ctx context.Context) error {
	c.io.Println("=== Phone Verification ===")
	c.io.Println()

	cred, err := c.loginCredential(ctx)
	if err != nil {
		return err
	}

	if !c.sms.CodeSent(ctx) {
		active, err := c.sms.HasActiveCode(ctx, cred)
		if err != nil {
			return fmt.Errorf("failed to check verification state: %w", err)
		}
		if !active {
			c.io.Println("No verification code is pending.")
			c.io.Println("Run 'portalkeeper resend' to request one.")
			return nil
		}
	}

	code, err := c.io.ReadInput("Verification code: ")
	if err != nil {
		return fmt.Errorf("failed to read code: %w", err)
	}

	if _, err := c.sms.SubmitCode(ctx, cred, code); err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("✓ Phone number verified!")
	c.io.Println()

	// Продвигаем flow дальше: обычно сразу следует captive-portal login.
	status, err := c.orch.Run(ctx)
	if err != nil {
		return err
	}
	c.printStatus(status)

	return nil
}

func (c *Cli) runResend(ctx context.Context) error {
	cred, err := c.loginCredential(ctx)
	if err != nil {
		return err
	}

	// Пустой номер означает номер, уже привязанный к аккаунту.
	if err := c.sms.RequestCode(ctx, cred, ""); err != nil {
		if errors.Is(err, verify.ErrCooldownActive) {
			c.io.Printf("Please wait before requesting another code: %v\n", err)
			return nil
		}
		return err
	}

	c.io.Println("✓ A new verification code has been sent.")
	c.io.Println("Run 'portalkeeper verify' to enter it.")

	return nil
}

func (c *Cli) runChangePhone(ctx context.Context) error {
	c.io.Println("=== Change Phone Number ===")
	c.io.Println()

	cred, err := c.loginCredential(ctx)
	if err != nil {
		return err
	}

	phone, err := c.io.ReadInput("New phone number (E.164, e.g. +15551234567): ")
	if err != nil {
		return fmt.Errorf("failed to read phone number: %w", err)
	}

	if err := c.sms.ChangePhone(ctx, cred, phone); err != nil {
		return err
	}

	c.io.Println("✓ Phone number updated.")

	if err := c.sms.RequestCode(ctx, cred, phone); err != nil {
		if errors.Is(err, verify.ErrCooldownActive) {
			c.io.Printf("Code not sent yet: %v\n", err)
			return nil
		}
		return err
	}

	c.io.Println("A verification code has been sent to the new number.")
	c.io.Println("Run 'portalkeeper verify' to enter it.")

	return nil
}

// loginCredential переводит сохраненный токен в credential для запросов
func (c *Cli) loginCredential(ctx context.Context) (api.Credential, error) {
	cred, err := c.orch.Credential(ctx)
	if err != nil {
		return api.Credential{}, fmt.Errorf("not authenticated. Please run 'portalkeeper login' first")
	}
	return cred, nil
}
