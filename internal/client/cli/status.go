package cli

import (
	"context"
	"fmt"
)

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Session Status ===")
	c.io.Println()

	status, err := c.orch.Run(ctx)
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}

	c.printStatus(status)
	return nil
}
