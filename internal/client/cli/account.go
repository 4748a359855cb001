package cli

import (
	"context"
	"fmt"

	"github.com/portalkeeper/portalkeeper/pkg/api"
)

func (c *Cli) runRegister(ctx context.Context) error {
	c.io.Println("=== Create Account ===")
	c.io.Println()

	email, err := c.io.ReadInput("Email: ")
	if err != nil {
		return fmt.Errorf("failed to read email: %w", err)
	}

	username, err := c.io.ReadInput(fmt.Sprintf("Username [%s]: ", email))
	if err != nil {
		return fmt.Errorf("failed to read username: %w", err)
	}
	if username == "" {
		username = email
	}

	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	confirm, err := c.io.ReadPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	phone, err := c.io.ReadInput("Phone number (leave empty if not required): ")
	if err != nil {
		return fmt.Errorf("failed to read phone number: %w", err)
	}

	rememberMe, err := c.io.ReadConfirm("Remember me on this device?", false)
	if err != nil {
		return fmt.Errorf("failed to read answer: %w", err)
	}

	c.io.Println()
	c.io.Println("Creating account...")

	status, err := c.orch.Register(ctx, api.RegistrationRequest{
		Username:    username,
		Email:       email,
		Password1:   password,
		Password2:   confirm,
		PhoneNumber: phone,
	}, rememberMe)
	if err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("✓ Account created!")
	c.io.Println()
	c.printStatus(status)

	return nil
}

func (c *Cli) runChangePassword(ctx context.Context) error {
	c.io.Println("=== Change Password ===")
	c.io.Println()

	current, err := c.io.ReadPassword("Current password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	newPassword, err := c.io.ReadPassword("New password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	confirm, err := c.io.ReadPassword("Confirm new password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if newPassword != confirm {
		return fmt.Errorf("passwords do not match")
	}

	if err := c.orch.ChangePassword(ctx, current, newPassword); err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("✓ Password changed.")
	return nil
}

func (c *Cli) runResetPassword(ctx context.Context) error {
	c.io.Println("=== Reset Password ===")
	c.io.Println()

	email, err := c.io.ReadInput("Account email: ")
	if err != nil {
		return fmt.Errorf("failed to read email: %w", err)
	}

	if err := c.orch.ResetPassword(ctx, email); err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("✓ If the email is registered, a reset link is on its way.")
	return nil
}
