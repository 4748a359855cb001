package cli

const usageTemplate = `
PortalKeeper Client

Usage:
  portalkeeper [OPTIONS] COMMAND

Options:
  --version          Show version information
  --server URL       Proxy server URL (default: http://localhost:8080)
  --org SLUG         Organization slug (default: default)
  --db PATH          Path to the local session database (default: portalkeeper-client.db)
  --config PATH      Path to the client config file (default: config.yaml)

Commands:
  login              Authenticate and open network access
  register           Create a new account
  change-password    Change the account password
  reset-password     Request a password reset email
  logout             Close the gateway session and forget the local one
  status             Show session status and the next required step
  sessions           List RADIUS accounting sessions
  verify             Submit the SMS verification code
  resend             Request a new SMS verification code
  change-phone       Change the phone number awaiting verification
  pay                Complete a pending subscription payment
  help               Show this help

Examples:
  portalkeeper login
  portalkeeper --org mobile status
  portalkeeper sessions 2
  portalkeeper verify
  portalkeeper --server https://portal.example.com login
`

const sessionsListTemplate = `
=== RADIUS Sessions ===

{{- if eq (len .Sessions) 0 }}
No accounting sessions found.
{{ else }}

{{- range .Sessions }}
- {{ .SessionID }}
   Device:   {{ .CallingStationID }}
   Started:  {{ .StartTime }}
   {{- if .Open }}
   Stopped:  still running
   {{- else }}
   Stopped:  {{ .StopTime }}
   {{- end }}
   Duration: {{ .SessionTime }}s
   Traffic:  {{ .InputOctets }} B down / {{ .OutputOctets }} B up

{{- end }}
{{- if .HasNext }}
More sessions available. Run 'portalkeeper sessions <page>' for the next page.
{{- end }}
{{- end }}
`
