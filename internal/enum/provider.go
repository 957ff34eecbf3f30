package enum

type AccountProvider string

const (
	ProviderGmail     AccountProvider = "gmail"
	ProviderOffice365 AccountProvider = "office365"
	ProviderIMAP      AccountProvider = "imap"
)

func (p AccountProvider) String() string {
	return string(p)
}

// IsOAuth reports whether the provider authenticates with a refresh token instead of a password.
func (p AccountProvider) IsOAuth() bool {
	return p == ProviderGmail || p == ProviderOffice365
}

func GetAccountProvider(s string) (AccountProvider, bool) {
	switch AccountProvider(s) {
	case ProviderGmail, ProviderOffice365, ProviderIMAP:
		return AccountProvider(s), true
	}
	return "", false
}

type SecurityMode string

const (
	SecuritySSLTLS   SecurityMode = "SSL / TLS"
	SecurityStartTLS SecurityMode = "STARTTLS"
)

func (s SecurityMode) String() string {
	return string(s)
}

// SecurityFromSocketType maps an autoconfig socketType value to a security mode.
func SecurityFromSocketType(socketType string) SecurityMode {
	if socketType == "STARTTLS" {
		return SecurityStartTLS
	}
	return SecuritySSLTLS
}

type AttemptStatus string

const (
	AttemptSucceeded AttemptStatus = "SUCCEEDED"
	AttemptFailed    AttemptStatus = "FAILED"
)

func (s AttemptStatus) String() string {
	return string(s)
}
