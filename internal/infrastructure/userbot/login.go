package userbot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
)

// terminalAuth prompts for the login code and 2FA password.
type terminalAuth struct {
	phone string
	in    *bufio.Reader
	out   io.Writer
}

var _ auth.UserAuthenticator = terminalAuth{}

func (a terminalAuth) Phone(_ context.Context) (string, error) {
	if a.phone != "" {
		return a.phone, nil
	}
	return a.prompt("Phone number: ")
}

func (a terminalAuth) Password(_ context.Context) (string, error) {
	return a.prompt("2FA password: ")
}

func (a terminalAuth) Code(_ context.Context, _ *tg.AuthSentCode) (string, error) {
	return a.prompt("Login code: ")
}

func (a terminalAuth) AcceptTermsOfService(_ context.Context, tos tg.HelpTermsOfService) error {
	return &auth.SignUpRequired{TermsOfService: tos}
}

func (a terminalAuth) SignUp(_ context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errors.New("sign up is not supported; register the account in an official client first")
}

func (a terminalAuth) prompt(label string) (string, error) {
	if _, err := fmt.Fprint(a.out, label); err != nil {
		return "", err
	}
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Login authorizes the session interactively and stores it in the session file.
func (c *Client) Login(ctx context.Context, phone string, in io.Reader, out io.Writer) error {
	flow := auth.NewFlow(terminalAuth{phone: phone, in: bufio.NewReader(in), out: out}, auth.SendCodeOptions{})
	return c.client.Run(ctx, func(ctx context.Context) error {
		if err := c.client.Auth().IfNecessary(ctx, flow); err != nil {
			return fmt.Errorf("userbot login: %w", err)
		}
		self, err := c.client.Self(ctx)
		if err != nil {
			return err
		}
		c.log.Info().Int64("user_id", self.ID).Str("username", self.Username).Msg("userbot authorized")
		return nil
	})
}
