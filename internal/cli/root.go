package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	OutputYAML = "yaml"
	OutputJSON = "json"
)

type options struct {
	configPath string
	output     string
	logLevel   string

	// redis replaces the configured Redis connection; tests point it at
	// miniredis.
	redis redis.UniversalClient
	// logOut receives store logs; nil means stderr.
	logOut io.Writer
}

// NewRootCommand returns the storeauth command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&options{})
}

func newRootCommand(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:   "storeauth",
		Short: "Storefront session bootstrap and auth client",
		Long: `storeauth restores a persisted storefront session, resolves the signed-in
user's profile and role, and runs the sign-in, sign-up, confirmation,
sign-out and password reset flows against the configured identity provider.

Configuration is read from --config (YAML) and STOREAUTH_* environment
variables, e.g. STOREAUTH_REDIS_ADDR or STOREAUTH_PROVIDER_GOTRUE_API_KEY.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (YAML)")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", OutputYAML, "output format: yaml or json")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override store.logging.level")

	root.AddCommand(
		newStatusCommand(opts),
		newSignInCommand(opts),
		newSignUpCommand(opts),
		newConfirmCommand(opts),
		newResendCommand(opts),
		newSignOutCommand(opts),
		newResetCommand(opts),
		newResetConfirmCommand(opts),
		newServeCommand(opts),
	)
	return root
}

// ExecuteContext runs the command tree with os.Args.
func ExecuteContext(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (o *options) load() (FileConfig, error) {
	cfg, err := LoadConfig(o.configPath)
	if err != nil {
		return FileConfig{}, err
	}
	if o.logLevel != "" {
		cfg.Store.Logging.Level = o.logLevel
	}
	return cfg, nil
}

// withRuntime loads config, opens the backends, starts the store and waits
// for its initial session check before calling fn.
func (o *options) withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *runtime) error) error {
	cfg, err := o.load()
	if err != nil {
		return err
	}
	rt, err := openRuntime(cfg, o.redis, o.logOut)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := rt.start(ctx); err != nil {
		return fmt.Errorf("start store: %w", err)
	}
	return fn(ctx, rt)
}

func (o *options) print(w io.Writer, v any) error {
	switch strings.ToLower(o.output) {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case OutputYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", o.output)
	}
}
