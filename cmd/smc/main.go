package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	smc "github.com/smcgo/smc/client"
	"github.com/smcgo/smc/internal/version"
	"github.com/smcgo/smc/shared/ask"
	config "github.com/smcgo/smc/shared/cliconfig"
	"github.com/smcgo/smc/shared/logger"
)

type cmdGlobal struct {
	asker ask.Asker
	conf  *config.Config

	// Path the configuration is saved to.
	confPath string

	// Sessions opened by the command, logged out once it's done.
	servers []*smc.ProtocolSMC

	flagConfig  string
	flagDebug   bool
	flagHelp    bool
	flagLogFile string
	flagQuiet   bool
	flagRemote  string
	flagVerbose bool
	flagVersion bool
}

func main() {
	app, _ := newApp()

	err := app.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() (*cobra.Command, *cmdGlobal) {
	app := &cobra.Command{}
	app.Use = "smc"
	app.Short = "Command line client for the management server"
	app.Long = `Description:
  Command line client for the management server

  The client talks to one or more management servers ("remotes") through
  their REST API, using an API key per remote.
`
	app.SilenceUsage = true
	app.SilenceErrors = true
	app.CompletionOptions = cobra.CompletionOptions{DisableDefaultCmd: true}

	// Global flags.
	globalCmd := cmdGlobal{asker: ask.NewAsker(bufio.NewReader(os.Stdin))}
	app.PersistentFlags().StringVar(&globalCmd.flagConfig, "config", "", "Path to the configuration file"+"``")
	app.PersistentFlags().StringVar(&globalCmd.flagRemote, "remote", "", "Remote to use instead of the default one"+"``")
	app.PersistentFlags().StringVar(&globalCmd.flagLogFile, "logfile", "", "Path to the log file"+"``")
	app.PersistentFlags().BoolVar(&globalCmd.flagVersion, "version", false, "Print version number")
	app.PersistentFlags().BoolVarP(&globalCmd.flagHelp, "help", "h", false, "Print help")
	app.PersistentFlags().BoolVarP(&globalCmd.flagQuiet, "quiet", "q", false, "Don't show progress information")
	app.PersistentFlags().BoolVarP(&globalCmd.flagVerbose, "verbose", "v", false, "Show all information messages")
	app.PersistentFlags().BoolVarP(&globalCmd.flagDebug, "debug", "d", false, "Show all debug messages")

	// Wrappers
	app.PersistentPreRunE = globalCmd.PreRun
	app.PersistentPostRunE = globalCmd.PostRun

	// Help handling.
	app.SetHelpCommand(&cobra.Command{
		Use:    "no-help",
		Hidden: true,
	})

	// Version handling.
	app.SetVersionTemplate("{{.Version}}\n")
	app.Version = version.Version

	// element sub-command
	elementCmd := cmdElement{global: &globalCmd}
	app.AddCommand(elementCmd.Command())

	// engine sub-command
	engineCmd := cmdEngine{global: &globalCmd}
	app.AddCommand(engineCmd.Command())

	// policy sub-command
	policyCmd := cmdPolicy{global: &globalCmd}
	app.AddCommand(policyCmd.Command())

	// remote sub-command
	remoteCmd := cmdRemote{global: &globalCmd}
	app.AddCommand(remoteCmd.Command())

	// system sub-command
	systemCmd := cmdSystem{global: &globalCmd}
	app.AddCommand(systemCmd.Command())

	return app, &globalCmd
}

// PreRun sets up logging and loads the configuration.
func (c *cmdGlobal) PreRun(cmd *cobra.Command, args []string) error {
	err := logger.InitLogger(c.flagLogFile, c.flagVerbose, c.flagDebug)
	if err != nil {
		return err
	}

	c.conf, err = config.LoadConfig(c.flagConfig)
	if err != nil {
		return err
	}

	c.confPath = c.flagConfig
	if c.confPath == "" {
		c.confPath = c.conf.ConfigPath("config.yml")
	}

	c.conf.UserAgent = version.UserAgent
	c.conf.PromptAPIKey = func(remote string) (string, error) {
		return c.asker.AskPasswordOnce(fmt.Sprintf("API key for %s: ", remote))
	}

	return nil
}

// PostRun closes the sessions opened by the command.
func (c *cmdGlobal) PostRun(cmd *cobra.Command, args []string) error {
	for _, server := range c.servers {
		err := server.Logout(context.Background())
		if err != nil {
			logger.Warn("Failed to log out", logger.Ctx{"url": server.URL(), "err": err})
		}
	}

	c.servers = nil
	return nil
}

// CheckArgs validates the number of arguments passed to the function and shows the help if incorrect.
func (c *cmdGlobal) CheckArgs(cmd *cobra.Command, args []string, minArgs int, maxArgs int) (bool, error) {
	if len(args) < minArgs || (maxArgs != -1 && len(args) > maxArgs) {
		_ = cmd.Help()

		if len(args) == 0 {
			return true, nil
		}

		return true, errors.New("Invalid number of arguments")
	}

	return false, nil
}

// ParseServer splits "[<remote>:]<object>" and logs into the remote.
func (c *cmdGlobal) ParseServer(ctx context.Context, raw string) (*smc.ProtocolSMC, string, error) {
	remote, object, err := c.conf.ParseRemote(raw)
	if err != nil {
		return nil, "", err
	}

	if c.flagRemote != "" && !strings.HasPrefix(raw, remote+":") {
		remote = c.flagRemote
	}

	server, err := c.conf.GetServer(ctx, remote)
	if err != nil {
		return nil, "", err
	}

	c.servers = append(c.servers, server)

	return server, object, nil
}

// Server logs into the remote selected by --remote or the default one.
func (c *cmdGlobal) Server(ctx context.Context) (*smc.ProtocolSMC, error) {
	server, err := c.conf.GetServer(ctx, c.flagRemote)
	if err != nil {
		return nil, err
	}

	c.servers = append(c.servers, server)

	return server, nil
}
