package validation

import (
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/bcnelson/helpdesk-settings/internal/domain"
)

const (
	httpsPrefix = "https://"
	slackPrefix = "https://hooks.slack.com/"
)

// Languages supported by the helpdesk portal.
var Languages = []string{"en", "es", "fr", "de", "pt", "id"}

// DateFormats are the accepted Go reference layouts for displayed dates.
var DateFormats = []string{"2006-01-02", "02/01/2006", "01/02/2006", "02.01.2006", "Jan 2, 2006"}

// NewDefaultEngine returns an engine with the rule sets of every settings
// section and of the SLA policy form.
func NewDefaultEngine() *Engine {
	e := NewEngine()
	Register(e, domain.SectionGeneral, GeneralRules()...)
	Register(e, domain.SectionEmail, EmailRules()...)
	Register(e, domain.SectionTicket, TicketRules()...)
	Register(e, domain.SectionIntegration, IntegrationRules()...)
	Register(e, domain.SectionAdvanced, AdvancedRules()...)
	Register(e, domain.SectionSLA, PolicyRules()...)
	return e
}

// GeneralRules validates GeneralSettings.
func GeneralRules() []Rule[domain.GeneralSettings] {
	return []Rule[domain.GeneralSettings]{
		{Field: "companyName", Check: func(s domain.GeneralSettings) string {
			if s.CompanyName == "" {
				return "company name is required"
			}
			if utf8.RuneCountInString(s.CompanyName) > 100 {
				return "company name must be at most 100 characters"
			}
			return ""
		}},
		{Field: "supportEmail", Check: func(s domain.GeneralSettings) string {
			return message(ValidateEmail(s.SupportEmail))
		}},
		{Field: "portalUrl", Check: func(s domain.GeneralSettings) string {
			if s.PortalURL == "" {
				return ""
			}
			return message(ValidateURL(s.PortalURL, httpsPrefix))
		}},
		{Field: "timezone", Check: func(s domain.GeneralSettings) string {
			return message(ValidateTimezone(s.Timezone))
		}},
		{Field: "language", Check: func(s domain.GeneralSettings) string {
			if !slices.Contains(Languages, s.Language) {
				return fmt.Sprintf("unsupported language: %q", s.Language)
			}
			return ""
		}},
		{Field: "dateFormat", Check: func(s domain.GeneralSettings) string {
			if !slices.Contains(DateFormats, s.DateFormat) {
				return fmt.Sprintf("unsupported date format: %q", s.DateFormat)
			}
			return ""
		}},
	}
}

// EmailRules validates EmailSettings. Host and sender are only required once
// SMTP is enabled; the port range is always checked.
func EmailRules() []Rule[domain.EmailSettings] {
	return []Rule[domain.EmailSettings]{
		{Field: "smtpPort", Check: func(s domain.EmailSettings) string {
			return message(ValidatePort(s.SMTPPort))
		}},
		{Field: "smtpHost", Check: func(s domain.EmailSettings) string {
			if !s.SMTPEnabled {
				return ""
			}
			if s.SMTPHost == "" {
				return "SMTP host is required when SMTP is enabled"
			}
			return message(ValidateHostName(s.SMTPHost))
		}},
		{Field: "fromAddress", Check: func(s domain.EmailSettings) string {
			if !s.SMTPEnabled && s.FromAddress == "" {
				return ""
			}
			if s.FromAddress == "" {
				return "from address is required when SMTP is enabled"
			}
			return message(ValidateEmail(s.FromAddress))
		}},
		{Field: "imapHost", Check: func(s domain.EmailSettings) string {
			if !s.IMAPEnabled {
				return ""
			}
			if s.IMAPHost == "" {
				return "IMAP host is required when IMAP is enabled"
			}
			return message(ValidateHostName(s.IMAPHost))
		}},
		{Field: "imapPort", Check: func(s domain.EmailSettings) string {
			if !s.IMAPEnabled {
				return ""
			}
			return message(ValidatePort(s.IMAPPort))
		}},
	}
}

// TicketRules validates TicketSettings.
func TicketRules() []Rule[domain.TicketSettings] {
	return []Rule[domain.TicketSettings]{
		{Field: "ticketPrefix", Check: func(s domain.TicketSettings) string {
			return message(ValidateTicketPrefix(s.TicketPrefix))
		}},
		{Field: "autoCloseDays", Check: func(s domain.TicketSettings) string {
			if !s.AutoCloseEnabled {
				return ""
			}
			return inRange(s.AutoCloseDays, 1, 365, "auto-close days")
		}},
		{Field: "reopenWindowDays", Check: func(s domain.TicketSettings) string {
			if !s.AllowCustomerReopen {
				return ""
			}
			return inRange(s.ReopenWindowDays, 0, 90, "reopen window")
		}},
		{Field: "maxAttachmentSizeMb", Check: func(s domain.TicketSettings) string {
			return inRange(s.MaxAttachmentSizeMB, 1, 100, "maximum attachment size")
		}},
		{Field: "escalationHours", Check: func(s domain.TicketSettings) string {
			if s.EscalationEnabled && s.EscalationHours <= 0 {
				return "escalation hours must be positive when escalation is enabled"
			}
			return ""
		}},
	}
}

// IntegrationRules validates IntegrationSettings. Every integration's fields
// are only required when that integration is enabled.
func IntegrationRules() []Rule[domain.IntegrationSettings] {
	return []Rule[domain.IntegrationSettings]{
		{Field: "slackWebhookUrl", Check: func(s domain.IntegrationSettings) string {
			if !s.SlackEnabled {
				return ""
			}
			if s.SlackWebhookURL == "" {
				return "Slack webhook URL is required when Slack is enabled"
			}
			return message(ValidateURL(s.SlackWebhookURL, slackPrefix))
		}},
		{Field: "webhookUrl", Check: func(s domain.IntegrationSettings) string {
			if !s.WebhookEnabled {
				return ""
			}
			if s.WebhookURL == "" {
				return "webhook URL is required when webhooks are enabled"
			}
			return message(ValidateURL(s.WebhookURL, httpsPrefix))
		}},
		{Field: "jiraBaseUrl", Check: func(s domain.IntegrationSettings) string {
			if !s.JiraEnabled {
				return ""
			}
			if s.JiraBaseURL == "" {
				return "Jira base URL is required when Jira is enabled"
			}
			return message(ValidateURL(s.JiraBaseURL, httpsPrefix))
		}},
		{Field: "jiraProjectKey", Check: func(s domain.IntegrationSettings) string {
			if !s.JiraEnabled {
				return ""
			}
			if s.JiraProjectKey == "" {
				return "Jira project key is required when Jira is enabled"
			}
			return message(ValidateProjectKey(s.JiraProjectKey))
		}},
	}
}

// AdvancedRules validates AdvancedSettings.
func AdvancedRules() []Rule[domain.AdvancedSettings] {
	return []Rule[domain.AdvancedSettings]{
		{Field: "apiRateLimit", Check: func(s domain.AdvancedSettings) string {
			return inRange(s.APIRateLimit, 1, 10000, "API rate limit")
		}},
		{Field: "sessionTimeoutMinutes", Check: func(s domain.AdvancedSettings) string {
			return inRange(s.SessionTimeoutMinutes, 5, 1440, "session timeout")
		}},
		{Field: "dataRetentionDays", Check: func(s domain.AdvancedSettings) string {
			return inRange(s.DataRetentionDays, 30, 3650, "data retention")
		}},
		ListRule("allowedIpRanges", func(s domain.AdvancedSettings) []string {
			return s.AllowedIPRanges
		}, ValidateHostAddress),
	}
}

// PolicyRules validates an SLA policy form.
func PolicyRules() []Rule[domain.PolicyForm] {
	positive := func(field string, get func(domain.PolicyForm) int) Rule[domain.PolicyForm] {
		return Rule[domain.PolicyForm]{Field: field, Check: func(f domain.PolicyForm) string {
			if get(f) <= 0 {
				return "hours must be positive"
			}
			return ""
		}}
	}
	return []Rule[domain.PolicyForm]{
		{Field: "ticketPriorityId", Check: func(f domain.PolicyForm) string {
			if f.TicketPriorityID == "" {
				return "ticket priority is required"
			}
			return ""
		}},
		positive("firstResponseHours", func(f domain.PolicyForm) int { return f.FirstResponseHours }),
		positive("nextResponseHours", func(f domain.PolicyForm) int { return f.NextResponseHours }),
		positive("resolutionHours", func(f domain.PolicyForm) int { return f.ResolutionHours }),
		{Field: "firstResponseHours", Check: func(f domain.PolicyForm) string {
			if f.FirstResponseHours > f.ResolutionHours {
				return "first response must not exceed resolution time"
			}
			return ""
		}},
	}
}
