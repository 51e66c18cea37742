package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/urfave/cli/v3"

	"github.com/iliyamo/movieflix/internal/client"
)

func signupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "signup",
		Usage: "Create an account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "Display name", Required: true},
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Email address", Required: true},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Password (6-72 characters)", Required: true, Sources: cli.EnvVars("MOVIEFLIX_PASSWORD")},
		},
		Action: r.Signup,
	}
}

func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in and save the session",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Email address", Required: true},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Password", Required: true, Sources: cli.EnvVars("MOVIEFLIX_PASSWORD")},
			&cli.BoolFlag{Name: "remember", Usage: "Keep the session cookie across browser restarts"},
		},
		Action: r.Login,
	}
}

func logoutCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Sign out and forget the saved session",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "everywhere", Usage: "Revoke every refresh token of the account, not just this one"},
		},
		Action: r.Logout,
	}
}

func whoamiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "whoami",
		Usage:  "Show the signed-in user",
		Action: r.Whoami,
	}
}

// Signup creates an account.  It does not sign in.
func (r *Runner) Signup(ctx context.Context, cmd *cli.Command) error {
	u, err := r.newClient(cmd).SignUp(ctx, cmd.String("name"), cmd.String("email"), cmd.String("password"))
	if err != nil {
		return describe(err)
	}
	return r.println(fmt.Sprintf("Account created for %s. Run `collection login` to sign in.", u.Email))
}

// Login signs in and saves the session to the credentials file.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	c := r.newClient(cmd)
	sess, err := c.SignIn(ctx, cmd.String("email"), cmd.String("password"), cmd.Bool("remember"))
	if err != nil {
		return describe(err)
	}
	creds := &Credentials{
		Server:           c.BaseURL(),
		Email:            sess.User.Email,
		Token:            sess.Token,
		ExpiresAt:        sess.ExpiresAt,
		RefreshToken:     sess.RefreshToken,
		RefreshExpiresAt: sess.RefreshExpiresAt,
	}
	if err := saveCredentials(cmd.String("credentials"), creds); err != nil {
		return err
	}
	r.logger.Debug("session saved", "path", cmd.String("credentials"))
	return r.println(fmt.Sprintf("Signed in as %s (%s).", sess.User.Name, sess.User.Email))
}

// Logout revokes the session on the server and removes the credentials
// file.  The file is removed even when the server already forgot the
// session.
func (r *Runner) Logout(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("credentials")
	c, creds, err := r.session(ctx, cmd)
	if err != nil {
		if rmErr := removeCredentials(path); rmErr != nil {
			return rmErr
		}
		return r.println("Signed out.")
	}
	refresh := creds.RefreshToken
	if cmd.Bool("everywhere") {
		refresh = ""
	}
	if err := c.SignOut(ctx, refresh); err != nil && client.StatusOf(err) != http.StatusUnauthorized {
		return describe(err)
	}
	if err := removeCredentials(path); err != nil {
		return err
	}
	return r.println("Signed out.")
}

// Whoami prints the signed-in user.
func (r *Runner) Whoami(ctx context.Context, cmd *cli.Command) error {
	c, _, err := r.session(ctx, cmd)
	if err != nil {
		return err
	}
	u, err := c.Session(ctx)
	if err != nil {
		if client.StatusOf(err) == http.StatusUnauthorized {
			return fmt.Errorf("session no longer valid; run `collection login` again")
		}
		return describe(err)
	}
	return r.println(fmt.Sprintf("%s <%s> (user %d, member since %s)", u.Name, u.Email, u.ID, u.CreatedAt.Format("2006-01-02")))
}
