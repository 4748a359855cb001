package cli

import (
	"context"
	"fmt"
)

func (c *Cli) runLogin(ctx context.Context) error {
	c.io.Println("=== Login ===")
	c.io.Println()

	prompt := "Username: "
	last := c.orch.LastUsername(ctx)
	if last != "" {
		prompt = fmt.Sprintf("Username [%s]: ", last)
	}
	username, err := c.io.ReadInput(prompt)
	if err != nil {
		return fmt.Errorf("failed to read username: %w", err)
	}
	if username == "" {
		username = last
	}

	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	rememberMe, err := c.io.ReadConfirm("Remember me on this device?", false)
	if err != nil {
		return fmt.Errorf("failed to read answer: %w", err)
	}

	c.io.Println()
	c.io.Println("Authenticating...")

	status, err := c.orch.Login(ctx, username, password, rememberMe)
	if err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("✓ Login successful!")
	c.io.Println()
	c.printStatus(status)

	return nil
}
