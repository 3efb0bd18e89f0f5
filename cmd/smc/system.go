package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	smc "github.com/smcgo/smc/client"
	"github.com/smcgo/smc/shared/revert"
)

type cmdSystem struct {
	global *cmdGlobal
}

func (c *cmdSystem) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "system"
	cmd.Short = "Manage the management server"
	cmd.Long = `Description:
  Manage the management server`

	// Export
	systemExportCmd := cmdSystemExport{global: c.global, system: c}
	cmd.AddCommand(systemExportCmd.Command())

	// Info
	systemInfoCmd := cmdSystemInfo{global: c.global, system: c}
	cmd.AddCommand(systemInfoCmd.Command())

	// Workaround for subcommand usage errors. See: https://github.com/spf13/cobra/issues/706
	cmd.Args = cobra.NoArgs
	cmd.Run = func(cmd *cobra.Command, args []string) { _ = cmd.Usage() }
	return cmd
}

// Info.
type cmdSystemInfo struct {
	global *cmdGlobal
	system *cmdSystem
}

func (c *cmdSystemInfo) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "info"
	cmd.Short = "Show the server version and time"
	cmd.Long = `Description:
  Show the server version and time`

	cmd.RunE = c.Run

	return cmd
}

func (c *cmdSystemInfo) Run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Quick checks.
	exit, err := c.global.CheckArgs(cmd, args, 0, 0)
	if exit {
		return err
	}

	conn, err := c.global.Server(ctx)
	if err != nil {
		return err
	}

	system, err := smc.GetSystem(ctx, conn)
	if err != nil {
		return err
	}

	serverVersion, err := system.Version(ctx)
	if err != nil {
		return err
	}

	serverTime, err := system.Time(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "URL: %s\n", conn.URL())
	_, _ = fmt.Fprintf(w, "API version: %s\n", conn.APIVersion())
	_, _ = fmt.Fprintf(w, "Version: %s\n", serverVersion)
	_, _ = fmt.Fprintf(w, "Time: %s\n", serverTime)

	return nil
}

// Export.
type cmdSystemExport struct {
	global *cmdGlobal
	system *cmdSystem

	flagType     string
	flagOutput   string
	flagInterval int
}

func (c *cmdSystemExport) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "export"
	cmd.Short = "Export elements into an archive"
	cmd.Long = `Description:
  Export elements into an archive

  The export runs on the server, the archive is downloaded once it's done.`

	cmd.Flags().StringVar(&c.flagType, "type", "all", "Element types ("+strings.Join(smc.ExportTypes, "|")+")``")
	cmd.Flags().StringVarP(&c.flagOutput, "output", "o", "export.zip", "Output file, - for stdout"+"``")
	cmd.Flags().IntVar(&c.flagInterval, "interval", int(smc.DefaultPollInterval/time.Second), "Seconds between progress checks"+"``")

	cmd.RunE = c.Run

	return cmd
}

func (c *cmdSystemExport) Run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Quick checks.
	exit, err := c.global.CheckArgs(cmd, args, 0, 0)
	if exit {
		return err
	}

	if c.flagInterval <= 0 {
		return fmt.Errorf("Invalid interval %d", c.flagInterval)
	}

	conn, err := c.global.Server(ctx)
	if err != nil {
		return err
	}

	system, err := smc.GetSystem(ctx, conn)
	if err != nil {
		return err
	}

	task, err := system.ExportElements(ctx, c.flagType)
	if err != nil {
		return err
	}

	// Progress goes to stderr when the archive is written to stdout.
	progress := cmd.OutOrStdout()
	if c.flagOutput == "-" {
		progress = cmd.ErrOrStderr()
	}

	_, err = driveTask(ctx, progress, task, true, time.Duration(c.flagInterval)*time.Second, c.global.flagQuiet)
	if err != nil {
		return err
	}

	if c.flagOutput == "-" {
		return task.Download(ctx, cmd.OutOrStdout())
	}

	reverter := revert.New()
	defer reverter.Fail()

	f, err := os.Create(c.flagOutput)
	if err != nil {
		return err
	}

	reverter.Add(func() { _ = os.Remove(c.flagOutput) })

	err = writeAndClose(f, func(w io.Writer) error { return task.Download(ctx, w) })
	if err != nil {
		return err
	}

	reverter.Success()

	if !c.global.flagQuiet {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Export saved to %s\n", c.flagOutput)
	}

	return nil
}

// writeAndClose runs write against f and closes it, reporting the first failure.
func writeAndClose(f *os.File, write func(w io.Writer) error) error {
	err := write(f)
	if err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}
