package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/fvbommel/sortorder"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	smc "github.com/smcgo/smc/client"
	cli "github.com/smcgo/smc/internal/cmd"
	"github.com/smcgo/smc/shared/api"
)

// Number of nodes queried at once by "engine nodes".
const nodeQueryParallelism = 4

type cmdEngine struct {
	global *cmdGlobal
}

func (c *cmdEngine) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "engine"
	cmd.Short = "Manage engines"
	cmd.Long = `Description:
  Manage engines`

	// Nodes
	engineNodesCmd := cmdEngineNodes{global: c.global, engine: c}
	cmd.AddCommand(engineNodesCmd.Command())

	// Refresh
	engineRefreshCmd := cmdEngineRefresh{global: c.global, engine: c}
	cmd.AddCommand(engineRefreshCmd.Command())

	// Workaround for subcommand usage errors. See: https://github.com/spf13/cobra/issues/706
	cmd.Args = cobra.NoArgs
	cmd.Run = func(cmd *cobra.Command, args []string) { _ = cmd.Usage() }
	return cmd
}

func (c *cmdEngine) lookup(ctx context.Context, raw string) (*smc.Engine, error) {
	conn, object, err := c.global.ParseServer(ctx, raw)
	if err != nil {
		return nil, err
	}

	return smc.GetEngine(ctx, conn, object)
}

// Nodes.
type cmdEngineNodes struct {
	global *cmdGlobal
	engine *cmdEngine

	flagFormat string
}

type nodeRow struct {
	Name   string          `json:"name" yaml:"name"`
	NodeID int             `json:"nodeid" yaml:"nodeid"`
	Href   string          `json:"href" yaml:"href"`
	Status *api.NodeStatus `json:"status,omitempty" yaml:"status,omitempty"`
}

func nodeStatusColumn(get func(*api.NodeStatus) string) func(nodeRow) (string, error) {
	return func(r nodeRow) (string, error) {
		if r.Status == nil {
			return "", nil
		}

		return get(r.Status), nil
	}
}

var nodeColumns = []cli.Column[nodeRow]{
	{Header: "NAME", DataFunc: func(r nodeRow) (string, error) { return r.Name, nil }},
	{Header: "NODE ID", DataFunc: func(r nodeRow) (string, error) { return strconv.Itoa(r.NodeID), nil }},
	{Header: "STATE", DataFunc: nodeStatusColumn(func(s *api.NodeStatus) string { return s.State })},
	{Header: "STATUS", DataFunc: nodeStatusColumn(func(s *api.NodeStatus) string { return s.Status })},
	{Header: "POLICY", DataFunc: nodeStatusColumn(func(s *api.NodeStatus) string { return s.InstalledPolicy })},
	{Header: "VERSION", DataFunc: nodeStatusColumn(func(s *api.NodeStatus) string { return s.Version })},
}

func (c *cmdEngineNodes) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "nodes [<remote>:]<engine>"
	cmd.Short = "List the nodes of an engine"
	cmd.Long = `Description:
  List the nodes of an engine along with their status`

	cmd.Flags().StringVarP(&c.flagFormat, "format", "f", cli.TableFormatTable, "Format (csv|json|table|yaml|compact)"+"``")
	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		return cli.ValidateFlagFormatForListOutput(cmd.Flag("format").Value.String())
	}

	cmd.RunE = c.Run

	return cmd
}

func (c *cmdEngineNodes) Run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Quick checks.
	exit, err := c.global.CheckArgs(cmd, args, 1, 1)
	if exit {
		return err
	}

	engine, err := c.engine.lookup(ctx, args[0])
	if err != nil {
		return err
	}

	nodes, err := engine.Nodes(ctx)
	if err != nil {
		return err
	}

	rows, err := nodeRows(ctx, nodes)
	if err != nil {
		return err
	}

	return cli.RenderSlice(cmd.OutOrStdout(), c.flagFormat, nodeColumns, rows)
}

// nodeRows gathers the node details, leaving the status empty on nodes which don't report one.
func nodeRows(ctx context.Context, nodes []*smc.Node) ([]nodeRow, error) {
	rows := make([]nodeRow, len(nodes))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(nodeQueryParallelism)

	for i, node := range nodes {
		group.Go(func() error {
			id, err := node.NodeID(groupCtx)
			if err != nil {
				return err
			}

			status, err := node.Status(groupCtx)
			if err != nil && !errors.Is(err, api.ErrUnsupportedFeature) {
				return fmt.Errorf("Failed to get status of node %q: %w", node.Name(), err)
			}

			rows[i] = nodeRow{Name: node.Name(), NodeID: id, Href: node.Href(), Status: status}

			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		return nil, err
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return sortorder.NaturalLess(rows[i].Name, rows[j].Name)
	})

	return rows, nil
}

// Refresh.
type cmdEngineRefresh struct {
	global *cmdGlobal
	engine *cmdEngine

	flagWait     bool
	flagInterval int
}

func (c *cmdEngineRefresh) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "refresh [<remote>:]<engine>"
	cmd.Short = "Refresh the installed policy of an engine"
	cmd.Long = `Description:
  Refresh the installed policy of an engine`

	cmd.Flags().BoolVar(&c.flagWait, "wait", false, "Wait for the refresh to complete")
	cmd.Flags().IntVar(&c.flagInterval, "interval", int(smc.DefaultPollInterval/time.Second), "Seconds between progress checks"+"``")

	cmd.RunE = c.Run

	return cmd
}

func (c *cmdEngineRefresh) Run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Quick checks.
	exit, err := c.global.CheckArgs(cmd, args, 1, 1)
	if exit {
		return err
	}

	if c.flagInterval <= 0 {
		return fmt.Errorf("Invalid interval %d", c.flagInterval)
	}

	engine, err := c.engine.lookup(ctx, args[0])
	if err != nil {
		return err
	}

	task, err := engine.Refresh(ctx)
	if err != nil {
		return err
	}

	_, err = driveTask(ctx, cmd.OutOrStdout(), task, c.flagWait, time.Duration(c.flagInterval)*time.Second, c.global.flagQuiet)
	return err
}
