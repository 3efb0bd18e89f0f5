package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	smc "github.com/smcgo/smc/client"
)

type cmdPolicy struct {
	global *cmdGlobal
}

func (c *cmdPolicy) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "policy"
	cmd.Short = "Manage policies"
	cmd.Long = `Description:
  Manage policies`

	// Upload
	policyUploadCmd := cmdPolicyUpload{global: c.global, policy: c}
	cmd.AddCommand(policyUploadCmd.Command())

	// Workaround for subcommand usage errors. See: https://github.com/spf13/cobra/issues/706
	cmd.Args = cobra.NoArgs
	cmd.Run = func(cmd *cobra.Command, args []string) { _ = cmd.Usage() }
	return cmd
}

// policyTypes maps the --type values to element types.
var policyTypes = map[string]string{
	"fw":  smc.TypeFirewallPolicy,
	"ips": smc.TypeIPSPolicy,
}

// Upload.
type cmdPolicyUpload struct {
	global *cmdGlobal
	policy *cmdPolicy

	flagType     string
	flagWait     bool
	flagInterval int
}

func (c *cmdPolicyUpload) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "upload [<remote>:]<policy> <engine>"
	cmd.Short = "Upload a policy to an engine"
	cmd.Long = `Description:
  Upload a policy to an engine`
	cmd.Example = `  smc policy upload Corporate fw-01 --wait
  smc policy upload prod:"IPS Default" ips-01 --type=ips`

	cmd.Flags().StringVar(&c.flagType, "type", "fw", "Policy type (fw|ips)"+"``")
	cmd.Flags().BoolVar(&c.flagWait, "wait", false, "Wait for the upload to complete")
	cmd.Flags().IntVar(&c.flagInterval, "interval", int(smc.DefaultPollInterval/time.Second), "Seconds between progress checks"+"``")

	cmd.RunE = c.Run

	return cmd
}

func (c *cmdPolicyUpload) Run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Quick checks.
	exit, err := c.global.CheckArgs(cmd, args, 2, 2)
	if exit {
		return err
	}

	typ, ok := policyTypes[c.flagType]
	if !ok {
		return fmt.Errorf("Invalid policy type %q", c.flagType)
	}

	if c.flagInterval <= 0 {
		return fmt.Errorf("Invalid interval %d", c.flagInterval)
	}

	conn, name, err := c.global.ParseServer(ctx, args[0])
	if err != nil {
		return err
	}

	policy, err := smc.GetPolicy(ctx, conn, typ, name)
	if err != nil {
		return err
	}

	task, err := policy.Upload(ctx, args[1])
	if err != nil {
		return err
	}

	_, err = driveTask(ctx, cmd.OutOrStdout(), task, c.flagWait, time.Duration(c.flagInterval)*time.Second, c.global.flagQuiet)
	return err
}
