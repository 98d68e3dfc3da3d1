package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/storeauth"
)

// PasswordEnv supplies a password when --password is not given.
const PasswordEnv = "STOREAUTH_PASSWORD"

// errOperationFailed marks a printed, unsuccessful Result.
var errOperationFailed = errors.New("operation failed")

func (o *options) report(cmd *cobra.Command, res storeauth.Result) error {
	if err := o.print(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%w: %s", errOperationFailed, res.Error.Message)
	}
	return nil
}

// readPassword takes the flag, then PasswordEnv, then the first stdin line.
func readPassword(cmd *cobra.Command, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv(PasswordEnv); env != "" {
		return env, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return "", errors.New("password is required")
	}
	return line, nil
}

func newSignInCommand(opts *options) *cobra.Command {
	var email, pw string
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := readPassword(cmd, pw)
			if err != nil {
				return err
			}
			return opts.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				return opts.report(cmd, rt.store.SignIn(ctx, email, secret))
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&pw, "password", "", "password (or "+PasswordEnv+", or stdin)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newSignUpCommand(opts *options) *cobra.Command {
	var (
		in   storeauth.SignUpInput
		role string
	)
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account; a confirmation code is sent to the email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := readPassword(cmd, in.Password)
			if err != nil {
				return err
			}
			in.Password = secret
			in.Role = storeauth.ParseRole(role)
			return opts.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				return opts.report(cmd, rt.store.SignUp(ctx, in))
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Email, "email", "", "account email")
	f.StringVar(&in.Password, "password", "", "password (or "+PasswordEnv+", or stdin)")
	f.StringVar(&role, "role", string(storeauth.RoleUser), "user, seller or admin")
	f.StringVar(&in.FullName, "name", "", "full name")
	f.StringVar(&in.Currency, "currency", "", "preferred currency code")
	f.StringVar(&in.Phone, "phone", "", "phone number")
	f.StringVar(&in.CountryID, "country", "", "country id")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newConfirmCommand(opts *options) *cobra.Command {
	var email, code string
	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Confirm a sign-up with the emailed code and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				return opts.report(cmd, rt.store.ConfirmSignUp(ctx, email, code))
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&code, "code", "", "confirmation code")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}

func newResendCommand(opts *options) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "resend",
		Short: "Send a new sign-up confirmation code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				return opts.report(cmd, rt.store.ResendSignUpCode(ctx, email))
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newSignOutCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out and remove the persisted session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				return opts.report(cmd, rt.store.SignOut(ctx))
			})
		},
	}
}

func newResetCommand(opts *options) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Email a password reset code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				return opts.report(cmd, rt.store.ResetPassword(ctx, email))
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newResetConfirmCommand(opts *options) *cobra.Command {
	var email, code, pw string
	cmd := &cobra.Command{
		Use:   "reset-confirm",
		Short: "Set a new password with the emailed reset code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := readPassword(cmd, pw)
			if err != nil {
				return err
			}
			return opts.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				return opts.report(cmd, rt.store.ConfirmPasswordReset(ctx, email, code, secret))
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&code, "code", "", "reset code")
	cmd.Flags().StringVar(&pw, "password", "", "new password (or "+PasswordEnv+", or stdin)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}
