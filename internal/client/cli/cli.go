package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/portalkeeper/portalkeeper/internal/client/iocli"
	"github.com/portalkeeper/portalkeeper/internal/client/orchestrator"
	"github.com/portalkeeper/portalkeeper/internal/client/verify"
)

type Cli struct {
	orch          *orchestrator.Orchestrator
	sms           *verify.SMSService
	payment       *verify.PaymentFlow
	trustedOrigin string
	io            iocli.IO
}

func New(orch *orchestrator.Orchestrator, sms *verify.SMSService, payment *verify.PaymentFlow, trustedOrigin string, io iocli.IO) *Cli {
	return &Cli{
		orch:          orch,
		sms:           sms,
		payment:       payment,
		trustedOrigin: trustedOrigin,
		io:            io,
	}
}

func (c *Cli) Run(ctx context.Context, command string, args []string) {
	var err error

	switch command {
	case "login":
		err = c.runLogin(ctx)
	case "register":
		err = c.runRegister(ctx)
	case "change-password":
		err = c.runChangePassword(ctx)
	case "reset-password":
		err = c.runResetPassword(ctx)
	case "logout":
		err = c.runLogout(ctx)
	case "status":
		err = c.runStatus(ctx)
	case "sessions":
		err = c.runSessions(ctx, args)
	case "verify":
		err = c.runVerify(ctx)
	case "resend":
		err = c.runResend(ctx)
	case "change-phone":
		err = c.runChangePhone(ctx)
	case "pay":
		err = c.runPay(ctx)
	case "help":
		PrintUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		PrintUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func PrintUsage() {
	fmt.Print(usageTemplate)
}
