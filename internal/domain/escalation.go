package domain

// Category classifies what an escalation is about.
type Category string

const (
	CategoryWiFi     Category = "WiFi"
	CategoryInternet Category = "Internet"
	CategoryBilling  Category = "Billing"
	CategoryHardware Category = "Hardware"
	CategorySoftware Category = "Software"
	CategoryAccount  Category = "Account"
	CategoryEmail    Category = "Email"
	CategoryUnknown  Category = "Unknown"
)

// EscalationReason explains why the agent handed the conversation off.
type EscalationReason string

const (
	ReasonCallerRequested  EscalationReason = "CallerRequested"
	ReasonUnableToResolve  EscalationReason = "UnableToResolve"
	ReasonTechnicalFailure EscalationReason = "TechnicalFailure"
	ReasonSecurityConcern  EscalationReason = "SecurityConcern"
	ReasonCallerFrustrated EscalationReason = "CallerFrustrated"
	ReasonOutOfScope       EscalationReason = "OutOfScope"
	ReasonOther            EscalationReason = "Other"
)

// Source tags the channel an escalation arrived from.
type Source string

const (
	SourcePhone Source = "phone"
	SourceChat  Source = "chat"
	SourceSMS   Source = "sms"
	SourceEmail Source = "email"
	SourceWeb   Source = "web"
)

// CategoryInfo describes an enumerated category for inference.
type CategoryInfo struct {
	Value       Category
	Description string
	Keywords    []string
}

// ReasonInfo describes an enumerated escalation reason for inference.
type ReasonInfo struct {
	Value       EscalationReason
	Description string
	Keywords    []string
}

// Categories lists every category in precedence order. The sentinel is last.
var Categories = []CategoryInfo{
	{CategoryWiFi, "Wireless network connectivity at the customer premises",
		[]string{"wifi", "wi-fi", "wireless", "router", "hotspot", "ssid", "signal"}},
	{CategoryInternet, "Broadband service outage or degraded speed",
		[]string{"internet", "no connection", "outage", "slow", "speed", "broadband", "offline", "disconnect"}},
	{CategoryBilling, "Invoices, charges, refunds and payment problems",
		[]string{"bill", "billing", "invoice", "charge", "refund", "payment", "overcharged", "price"}},
	{CategoryHardware, "Faulty or missing physical equipment",
		[]string{"hardware", "device", "modem", "cable", "broken", "replace", "equipment", "power"}},
	{CategorySoftware, "Applications, firmware and installation problems",
		[]string{"software", "app", "application", "update", "install", "firmware", "crash", "bug"}},
	{CategoryAccount, "Login, password and account ownership issues",
		[]string{"account", "login", "log in", "password", "locked", "username", "profile", "cancel"}},
	{CategoryEmail, "Mailbox delivery and configuration",
		[]string{"email", "e-mail", "mailbox", "inbox", "spam", "outlook", "smtp"}},
	{CategoryUnknown, "Could not be classified", nil},
}

// Reasons lists every escalation reason in precedence order. The sentinel is last.
var Reasons = []ReasonInfo{
	{ReasonCallerRequested, "The caller explicitly asked for a human",
		[]string{"human", "agent", "representative", "person", "requested", "speak to", "talk to", "manager"}},
	{ReasonSecurityConcern, "Possible fraud, compromise or data exposure",
		[]string{"fraud", "hacked", "security", "compromised", "stolen", "phishing", "suspicious"}},
	{ReasonCallerFrustrated, "The caller is upset or threatening to leave",
		[]string{"angry", "frustrated", "upset", "complaint", "unacceptable", "furious", "annoyed"}},
	{ReasonTechnicalFailure, "A system or tool failed during the conversation",
		[]string{"error", "failed", "failure", "timeout", "system down", "not working"}},
	{ReasonUnableToResolve, "The agent exhausted its troubleshooting steps",
		[]string{"unable", "cannot resolve", "could not", "still", "persist", "tried", "unresolved"}},
	{ReasonOutOfScope, "The request falls outside what the agent handles",
		[]string{"out of scope", "not supported", "unsupported", "outside", "legal"}},
	{ReasonOther, "No specific reason given", nil},
}

// Valid reports whether c is a member of the enumeration.
func (c Category) Valid() bool {
	for _, info := range Categories {
		if info.Value == c {
			return true
		}
	}
	return false
}

// Valid reports whether r is a member of the enumeration.
func (r EscalationReason) Valid() bool {
	for _, info := range Reasons {
		if info.Value == r {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known source tag.
func (s Source) Valid() bool {
	switch s {
	case SourcePhone, SourceChat, SourceSMS, SourceEmail, SourceWeb:
		return true
	}
	return false
}

// NormalizedNote is the validated four-field note derived for a single request.
type NormalizedNote struct {
	Category         Category
	EscalationReason EscalationReason
	Summary          string
	Confidence       string
}
