package cli

import (
	"context"
	"fmt"
	"strconv"
	"text/template"
)

func (c *Cli) runSessions(ctx context.Context, args []string) error {
	page := 1
	if len(args) > 0 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil || parsed < 1 {
			return fmt.Errorf("invalid page number: %s. Usage: portalkeeper sessions [page]", args[0])
		}
		page = parsed
	}

	sessionPage, err := c.orch.Sessions(ctx, page)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	tmpl, err := template.New("sessions").Parse(sessionsListTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	if err := tmpl.Execute(c.io, sessionPage); err != nil {
		return fmt.Errorf("failed to render sessions: %w", err)
	}

	return nil
}
