package connectivity

import (
	"net/smtp"

	"github.com/emersion/go-sasl"
)

const xoauth2Mechanism = "XOAUTH2"

func xoauth2InitialResponse(username, accessToken string) []byte {
	return []byte("user=" + username + "\x01auth=Bearer " + accessToken + "\x01\x01")
}

// imapXoauth2 is the IMAP AUTHENTICATE XOAUTH2 client.
type imapXoauth2 struct {
	username    string
	accessToken string
}

func newImapXoauth2(username, accessToken string) sasl.Client {
	return &imapXoauth2{username: username, accessToken: accessToken}
}

func (a *imapXoauth2) Start() (string, []byte, error) {
	return xoauth2Mechanism, xoauth2InitialResponse(a.username, a.accessToken), nil
}

// Next answers the error challenge with an empty response so the server completes with NO.
func (a *imapXoauth2) Next(challenge []byte) ([]byte, error) {
	return []byte{}, nil
}

// smtpXoauth2 is the SMTP AUTH XOAUTH2 client.
type smtpXoauth2 struct {
	username    string
	accessToken string
}

func newSmtpXoauth2(username, accessToken string) smtp.Auth {
	return &smtpXoauth2{username: username, accessToken: accessToken}
}

func (a *smtpXoauth2) Start(server *smtp.ServerInfo) (string, []byte, error) {
	return xoauth2Mechanism, xoauth2InitialResponse(a.username, a.accessToken), nil
}

func (a *smtpXoauth2) Next(fromServer []byte, more bool) ([]byte, error) {
	if more {
		return []byte{}, nil
	}
	return nil, nil
}
