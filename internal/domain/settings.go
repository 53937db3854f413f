package domain

import "slices"

// GeneralSettings holds company-wide helpdesk settings.
type GeneralSettings struct {
	CompanyName     string `json:"companyName"`
	SupportEmail    string `json:"supportEmail"`
	PortalURL       string `json:"portalUrl"`
	Timezone        string `json:"timezone"`
	Language        string `json:"language"`
	DateFormat      string `json:"dateFormat"`
	MaintenanceMode bool   `json:"maintenanceMode"`
}

// DefaultGeneralSettings returns the settings used before the first fetch.
func DefaultGeneralSettings() GeneralSettings {
	return GeneralSettings{
		CompanyName:  "Helpdesk",
		SupportEmail: "support@example.com",
		Timezone:     "UTC",
		Language:     "en",
		DateFormat:   "2006-01-02",
	}
}

func (s GeneralSettings) Equal(o GeneralSettings) bool { return s == o }
func (s GeneralSettings) Clone() GeneralSettings      { return s }

// EmailSettings configures outbound SMTP and inbound IMAP mail.
type EmailSettings struct {
	SMTPEnabled               bool   `json:"smtpEnabled"`
	SMTPHost                  string `json:"smtpHost"`
	SMTPPort                  int    `json:"smtpPort"`
	SMTPUsername              string `json:"smtpUsername"`
	SMTPPassword              string `json:"smtpPassword"`
	SMTPUseTLS                bool   `json:"smtpUseTls"`
	FromAddress               string `json:"fromAddress"`
	FromName                  string `json:"fromName"`
	IMAPEnabled               bool   `json:"imapEnabled"`
	IMAPHost                  string `json:"imapHost"`
	IMAPPort                  int    `json:"imapPort"`
	EmailNotificationsEnabled bool   `json:"emailNotificationsEnabled"`
	Signature                 string `json:"signature"`
}

// DefaultEmailSettings returns the settings used before the first fetch.
func DefaultEmailSettings() EmailSettings {
	return EmailSettings{
		SMTPPort:                  587,
		SMTPUseTLS:                true,
		IMAPPort:                  993,
		EmailNotificationsEnabled: true,
	}
}

func (s EmailSettings) Equal(o EmailSettings) bool { return s == o }
func (s EmailSettings) Clone() EmailSettings      { return s }

// TicketSettings controls ticket numbering, assignment and lifecycle.
type TicketSettings struct {
	TicketPrefix        string `json:"ticketPrefix"`
	DefaultPriorityID   string `json:"defaultPriorityId"`
	AutoAssignEnabled   bool   `json:"autoAssignEnabled"`
	AutoCloseEnabled    bool   `json:"autoCloseEnabled"`
	AutoCloseDays       int    `json:"autoCloseDays"`
	AllowCustomerReopen bool   `json:"allowCustomerReopen"`
	ReopenWindowDays    int    `json:"reopenWindowDays"`
	MaxAttachmentSizeMB int    `json:"maxAttachmentSizeMb"`
	EscalationEnabled   bool   `json:"escalationEnabled"`
	EscalationHours     int    `json:"escalationHours"`
}

// DefaultTicketSettings returns the settings used before the first fetch.
func DefaultTicketSettings() TicketSettings {
	return TicketSettings{
		TicketPrefix:        "TKT",
		AutoCloseDays:       7,
		AllowCustomerReopen: true,
		ReopenWindowDays:    14,
		MaxAttachmentSizeMB: 10,
		EscalationHours:     24,
	}
}

func (s TicketSettings) Equal(o TicketSettings) bool { return s == o }
func (s TicketSettings) Clone() TicketSettings      { return s }

// IntegrationSettings configures outbound integrations.
type IntegrationSettings struct {
	SlackEnabled    bool   `json:"slackEnabled"`
	SlackWebhookURL string `json:"slackWebhookUrl"`
	SlackChannel    string `json:"slackChannel"`
	WebhookEnabled  bool   `json:"webhookEnabled"`
	WebhookURL      string `json:"webhookUrl"`
	WebhookSecret   string `json:"webhookSecret"`
	JiraEnabled     bool   `json:"jiraEnabled"`
	JiraBaseURL     string `json:"jiraBaseUrl"`
	JiraProjectKey  string `json:"jiraProjectKey"`
	JiraAPIToken    string `json:"jiraApiToken"`
}

// DefaultIntegrationSettings returns the settings used before the first fetch.
func DefaultIntegrationSettings() IntegrationSettings {
	return IntegrationSettings{}
}

func (s IntegrationSettings) Equal(o IntegrationSettings) bool { return s == o }
func (s IntegrationSettings) Clone() IntegrationSettings      { return s }

// AdvancedSettings holds API, session and retention settings.
type AdvancedSettings struct {
	APIRateLimit          int      `json:"apiRateLimit"`
	SessionTimeoutMinutes int      `json:"sessionTimeoutMinutes"`
	DataRetentionDays     int      `json:"dataRetentionDays"`
	AllowedIPRanges       []string `json:"allowedIpRanges"`
	AuditLogEnabled       bool     `json:"auditLogEnabled"`
	DebugMode             bool     `json:"debugMode"`
}

// DefaultAdvancedSettings returns the settings used before the first fetch.
func DefaultAdvancedSettings() AdvancedSettings {
	return AdvancedSettings{
		APIRateLimit:          1000,
		SessionTimeoutMinutes: 60,
		DataRetentionDays:     365,
		AuditLogEnabled:       true,
	}
}

// Equal treats a nil and an empty IP range list as the same value.
func (s AdvancedSettings) Equal(o AdvancedSettings) bool {
	return s.APIRateLimit == o.APIRateLimit &&
		s.SessionTimeoutMinutes == o.SessionTimeoutMinutes &&
		s.DataRetentionDays == o.DataRetentionDays &&
		slices.Equal(s.AllowedIPRanges, o.AllowedIPRanges) &&
		s.AuditLogEnabled == o.AuditLogEnabled &&
		s.DebugMode == o.DebugMode
}

func (s AdvancedSettings) Clone() AdvancedSettings {
	s.AllowedIPRanges = slices.Clone(s.AllowedIPRanges)
	return s
}
