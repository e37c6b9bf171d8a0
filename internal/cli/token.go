package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soyeahso/botway/internal/usertoken"
)

// tokenFlags are shared by all token subcommands.
type tokenFlags struct {
	connection string
	channel    string
	user       string
}

func (f *tokenFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.connection, "connection", "", "OAuth connection name (default from config)")
	cmd.Flags().StringVar(&f.channel, "channel", "msteams", "channel ID")
	cmd.Flags().StringVar(&f.user, "user", "", "user ID")
	cmd.MarkFlagRequired("user")
}

// tokenClient builds a user-token client from the loaded config.
func (f *tokenFlags) tokenClient() (*usertoken.Client, error) {
	cfg, err := loadValidConfig()
	if err != nil {
		return nil, err
	}
	if f.connection == "" {
		f.connection = cfg.UserToken.ConnectionName
	}
	if f.connection == "" {
		return nil, fmt.Errorf("no connection name: pass --connection or set userToken.connectionName")
	}
	tokens := buildTokenProvider(cfg, log)
	return usertoken.New(tokens, log,
		usertoken.WithEndpoint(cfg.UserToken.Endpoint),
		usertoken.WithScope(cfg.UserToken.Scope),
	), nil
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Inspect and manage user tokens",
	}

	cmd.AddCommand(newTokenStatusCmd())
	cmd.AddCommand(newTokenGetCmd())
	cmd.AddCommand(newTokenSignInCmd())
	cmd.AddCommand(newTokenSignOutCmd())

	return cmd
}

func newTokenStatusCmd() *cobra.Command {
	var flags tokenFlags
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether the user has a stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.tokenClient()
			if err != nil {
				return err
			}
			status, err := client.GetTokenStatus(cmd.Context(), flags.user, flags.channel, flags.connection)
			if err != nil {
				return err
			}
			if !status.HasToken {
				fmt.Println("no token stored")
				return nil
			}
			fmt.Printf("token stored for connection %s", status.ConnectionName)
			if status.ServiceProviderDisplayName != "" {
				fmt.Printf(" (%s)", status.ServiceProviderDisplayName)
			}
			fmt.Println()
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newTokenGetCmd() *cobra.Command {
	var flags tokenFlags
	var code string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Fetch the user's stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.tokenClient()
			if err != nil {
				return err
			}
			result, err := client.GetToken(cmd.Context(), flags.user, flags.connection, flags.channel, code)
			if err != nil {
				return err
			}
			if result == nil {
				fmt.Println("no token stored")
				return nil
			}
			fmt.Println(result.Token)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&code, "code", "", "magic code from the sign-in flow")
	return cmd
}

func newTokenSignInCmd() *cobra.Command {
	var flags tokenFlags
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Get a token or a sign-in link for the user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.tokenClient()
			if err != nil {
				return err
			}
			res, err := client.GetTokenOrSignInResource(cmd.Context(), flags.user, flags.connection, flags.channel)
			if err != nil {
				return err
			}
			if res != nil && res.TokenResponse != nil {
				fmt.Println("already signed in")
				return nil
			}
			if res == nil || res.SignInResource == nil {
				fmt.Println("no sign-in resource returned")
				return nil
			}
			fmt.Println(res.SignInResource.SignInLink)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newTokenSignOutCmd() *cobra.Command {
	var flags tokenFlags
	cmd := &cobra.Command{
		Use:   "signout",
		Short: "Discard the user's stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.tokenClient()
			if err != nil {
				return err
			}
			if client.SignOut(cmd.Context(), flags.user, flags.connection, flags.channel) {
				fmt.Println("signed out")
			} else {
				fmt.Println("sign-out not confirmed")
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
