package main

import (
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/fvbommel/sortorder"
	"github.com/spf13/cobra"

	cli "github.com/smcgo/smc/internal/cmd"
	"github.com/smcgo/smc/internal/ports"
	config "github.com/smcgo/smc/shared/cliconfig"
	localtls "github.com/smcgo/smc/shared/tls"
)

type cmdRemote struct {
	global *cmdGlobal
}

func (c *cmdRemote) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "remote"
	cmd.Short = "Manage the list of remote servers"
	cmd.Long = `Description:
  Manage the list of remote servers`

	// Add
	remoteAddCmd := cmdRemoteAdd{global: c.global, remote: c}
	cmd.AddCommand(remoteAddCmd.Command())

	// List
	remoteListCmd := cmdRemoteList{global: c.global, remote: c}
	cmd.AddCommand(remoteListCmd.Command())

	// Remove
	remoteRemoveCmd := cmdRemoteRemove{global: c.global, remote: c}
	cmd.AddCommand(remoteRemoveCmd.Command())

	// Switch
	remoteSwitchCmd := cmdRemoteSwitch{global: c.global, remote: c}
	cmd.AddCommand(remoteSwitchCmd.Command())

	// Workaround for subcommand usage errors. See: https://github.com/spf13/cobra/issues/706
	cmd.Args = cobra.NoArgs
	cmd.Run = func(cmd *cobra.Command, args []string) { _ = cmd.Usage() }
	return cmd
}

// normalizeAddr adds the scheme and API port when missing.
func normalizeAddr(addr string) (string, error) {
	if !strings.Contains(addr, "://") {
		addr = "https://" + addr
	}

	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("Invalid address %q: %w", addr, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("Unsupported scheme %q", u.Scheme)
	}

	if u.Host == "" {
		return "", fmt.Errorf("Invalid address %q: missing host", addr)
	}

	if u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(ports.APIDefaultPort))
	}

	return strings.TrimSuffix(u.String(), "/"), nil
}

// Add.
type cmdRemoteAdd struct {
	global *cmdGlobal
	remote *cmdRemote

	flagAcceptCert bool
	flagAPIKey     string
	flagAPIVersion string
	flagDomain     string
	flagInsecure   bool
	flagTimeout    int
}

func (c *cmdRemoteAdd) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "add <remote> <address>"
	cmd.Short = "Add new remote servers"
	cmd.Long = `Description:
  Add new remote servers

  The address defaults to HTTPS on the API port when not specified.
  Self-signed certificates are pinned after confirming their fingerprint.`
	cmd.Example = `  smc remote add prod smc.example.net
  smc remote add lab http://10.0.0.5:8082 --api-key=xxxx`

	cmd.Flags().BoolVar(&c.flagAcceptCert, "accept-certificate", false, "Accept certificate")
	cmd.Flags().StringVar(&c.flagAPIKey, "api-key", "", "API key, prompted for if missing"+"``")
	cmd.Flags().StringVar(&c.flagAPIVersion, "api-version", "", "API version, the most recent one if missing"+"``")
	cmd.Flags().StringVar(&c.flagDomain, "domain", "", "Administrative domain"+"``")
	cmd.Flags().BoolVar(&c.flagInsecure, "insecure", false, "Don't verify the server certificate")
	cmd.Flags().IntVar(&c.flagTimeout, "timeout", 0, "Request timeout in seconds"+"``")

	cmd.RunE = c.Run

	return cmd
}

func (c *cmdRemoteAdd) Run(cmd *cobra.Command, args []string) error {
	conf := c.global.conf

	// Quick checks.
	exit, err := c.global.CheckArgs(cmd, args, 2, 2)
	if exit {
		return err
	}

	name := args[0]
	if name == "" || strings.ContainsAny(name, ": /") {
		return fmt.Errorf("Invalid remote name %q", name)
	}

	_, ok := conf.Remotes[name]
	if ok {
		return fmt.Errorf("Remote %s exists as <%s>", name, conf.Remotes[name].Addr)
	}

	addr, err := normalizeAddr(args[1])
	if err != nil {
		return err
	}

	remote := config.Remote{
		Addr:               addr,
		APIKey:             c.flagAPIKey,
		APIVersion:         c.flagAPIVersion,
		Domain:             c.flagDomain,
		InsecureSkipVerify: c.flagInsecure,
		Timeout:            c.flagTimeout,
	}

	if remote.APIKey == "" {
		remote.APIKey, err = c.global.asker.AskPasswordOnce(fmt.Sprintf("API key for %s: ", name))
		if err != nil {
			return err
		}
	}

	if strings.HasPrefix(addr, "https://") && !c.flagInsecure {
		err = c.pinCertificate(cmd, name, addr)
		if err != nil {
			return err
		}
	}

	conf.Remotes[name] = remote
	if len(conf.Remotes) == 1 || conf.DefaultRemote == "" {
		conf.DefaultRemote = name
	}

	return conf.SaveConfig(c.global.confPath)
}

// pinCertificate stores the server certificate when it isn't trusted by the system.
func (c *cmdRemoteAdd) pinCertificate(cmd *cobra.Command, name string, addr string) error {
	cert, err := localtls.GetRemoteCertificate(addr, c.global.conf.UserAgent)
	if err != nil {
		return fmt.Errorf("Unable to reach %s: %w", addr, err)
	}

	u, _ := url.Parse(addr)
	_, err = cert.Verify(x509.VerifyOptions{DNSName: u.Hostname()})
	if err == nil {
		return nil
	}

	if !c.flagAcceptCert {
		digest := localtls.CertFingerprint(cert)

		fmt.Fprintf(cmd.OutOrStdout(), "Certificate fingerprint: %s\n", digest)
		ok, err := c.global.asker.AskBool("ok (y/n)? ", "")
		if err != nil {
			return err
		}

		if !ok {
			return errors.New("Server certificate NACKed by user")
		}
	}

	return c.global.conf.SaveServerCert(name, cert)
}

// List.
type cmdRemoteList struct {
	global *cmdGlobal
	remote *cmdRemote

	flagFormat string
}

type remoteRow struct {
	Name       string `json:"name" yaml:"name"`
	Addr       string `json:"addr" yaml:"addr"`
	APIVersion string `json:"api_version" yaml:"api_version"`
	Domain     string `json:"domain" yaml:"domain"`
	Pinned     bool   `json:"pinned" yaml:"pinned"`
	Default    bool   `json:"default" yaml:"default"`
}

var remoteColumns = []cli.Column[remoteRow]{
	{Header: "NAME", DataFunc: func(r remoteRow) (string, error) {
		if r.Default {
			return r.Name + " (current)", nil
		}

		return r.Name, nil
	}},
	{Header: "URL", DataFunc: func(r remoteRow) (string, error) { return r.Addr, nil }},
	{Header: "API VERSION", DataFunc: func(r remoteRow) (string, error) { return r.APIVersion, nil }},
	{Header: "DOMAIN", DataFunc: func(r remoteRow) (string, error) { return r.Domain, nil }},
	{Header: "PINNED", DataFunc: func(r remoteRow) (string, error) {
		if r.Pinned {
			return "YES", nil
		}

		return "NO", nil
	}},
}

func (c *cmdRemoteList) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "list"
	cmd.Aliases = []string{"ls"}
	cmd.Short = "List the available remotes"
	cmd.Long = `Description:
  List the available remotes`

	cmd.Flags().StringVarP(&c.flagFormat, "format", "f", cli.TableFormatTable, "Format (csv|json|table|yaml|compact)"+"``")
	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		return cli.ValidateFlagFormatForListOutput(cmd.Flag("format").Value.String())
	}

	cmd.RunE = c.Run

	return cmd
}

func (c *cmdRemoteList) Run(cmd *cobra.Command, args []string) error {
	conf := c.global.conf

	// Quick checks.
	exit, err := c.global.CheckArgs(cmd, args, 0, 0)
	if exit {
		return err
	}

	names := make([]string, 0, len(conf.Remotes))
	for name := range conf.Remotes {
		names = append(names, name)
	}

	sort.Sort(sortorder.Natural(names))

	rows := make([]remoteRow, 0, len(names))
	for _, name := range names {
		remote := conf.Remotes[name]
		rows = append(rows, remoteRow{
			Name:       name,
			Addr:       remote.Addr,
			APIVersion: remote.APIVersion,
			Domain:     remote.Domain,
			Pinned:     conf.HasServerCert(name),
			Default:    name == conf.DefaultRemote,
		})
	}

	return cli.RenderSlice(cmd.OutOrStdout(), c.flagFormat, remoteColumns, rows)
}

// Remove.
type cmdRemoteRemove struct {
	global *cmdGlobal
	remote *cmdRemote
}

func (c *cmdRemoteRemove) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "remove <remote>"
	cmd.Aliases = []string{"rm"}
	cmd.Short = "Remove remotes"
	cmd.Long = `Description:
  Remove remotes`

	cmd.RunE = c.Run

	return cmd
}

func (c *cmdRemoteRemove) Run(cmd *cobra.Command, args []string) error {
	conf := c.global.conf

	// Quick checks.
	exit, err := c.global.CheckArgs(cmd, args, 1, 1)
	if exit {
		return err
	}

	_, ok := conf.Remotes[args[0]]
	if !ok {
		return fmt.Errorf("Remote %s doesn't exist", args[0])
	}

	if conf.DefaultRemote == args[0] {
		return errors.New("Can't remove the default remote")
	}

	delete(conf.Remotes, args[0])

	err = conf.RemoveServerCert(args[0])
	if err != nil {
		return err
	}

	return conf.SaveConfig(c.global.confPath)
}

// Switch.
type cmdRemoteSwitch struct {
	global *cmdGlobal
	remote *cmdRemote
}

func (c *cmdRemoteSwitch) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "switch <remote>"
	cmd.Aliases = []string{"set-default"}
	cmd.Short = "Switch the default remote"
	cmd.Long = `Description:
  Switch the default remote`

	cmd.RunE = c.Run

	return cmd
}

func (c *cmdRemoteSwitch) Run(cmd *cobra.Command, args []string) error {
	conf := c.global.conf

	// Quick checks.
	exit, err := c.global.CheckArgs(cmd, args, 1, 1)
	if exit {
		return err
	}

	_, ok := conf.Remotes[args[0]]
	if !ok {
		return fmt.Errorf("Remote %s doesn't exist", args[0])
	}

	conf.DefaultRemote = args[0]

	return conf.SaveConfig(c.global.confPath)
}
