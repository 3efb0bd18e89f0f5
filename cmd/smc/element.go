package main

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sort"

	"github.com/fvbommel/sortorder"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	smc "github.com/smcgo/smc/client"
	cli "github.com/smcgo/smc/internal/cmd"
	"github.com/smcgo/smc/shared/api"
	cmdutil "github.com/smcgo/smc/shared/cmd"
)

type cmdElement struct {
	global *cmdGlobal

	flagType string
}

func (c *cmdElement) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "element"
	cmd.Short = "Manage configuration elements"
	cmd.Long = `Description:
  Manage configuration elements

  Elements are given either by href or by name, --type narrowing the lookup.`
	cmd.PersistentFlags().StringVarP(&c.flagType, "type", "t", "", "Element type used to resolve names"+"``")

	// Delete
	elementDeleteCmd := cmdElementDelete{global: c.global, element: c}
	cmd.AddCommand(elementDeleteCmd.Command())

	// Edit
	elementEditCmd := cmdElementEdit{global: c.global, element: c}
	cmd.AddCommand(elementEditCmd.Command())

	// List
	elementListCmd := cmdElementList{global: c.global, element: c}
	cmd.AddCommand(elementListCmd.Command())

	// Show
	elementShowCmd := cmdElementShow{global: c.global, element: c}
	cmd.AddCommand(elementShowCmd.Command())

	// Workaround for subcommand usage errors. See: https://github.com/spf13/cobra/issues/706
	cmd.Args = cobra.NoArgs
	cmd.Run = func(cmd *cobra.Command, args []string) { _ = cmd.Usage() }
	return cmd
}

func (c *cmdElement) lookup(ctx context.Context, raw string) (*smc.Element, error) {
	conn, object, err := c.global.ParseServer(ctx, raw)
	if err != nil {
		return nil, err
	}

	return lookupElement(ctx, conn, object, c.flagType)
}

// Show.
type cmdElementShow struct {
	global  *cmdGlobal
	element *cmdElement

	flagLinks bool
}

func (c *cmdElementShow) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "show [<remote>:]<element>"
	cmd.Short = "Show element configurations"
	cmd.Long = `Description:
  Show element configurations`
	cmd.Flags().BoolVar(&c.flagLinks, "links", false, "Include the links of the element, by relation")

	cmd.RunE = c.Run

	return cmd
}

func (c *cmdElementShow) Run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Quick checks.
	exit, err := c.global.CheckArgs(cmd, args, 1, 1)
	if exit {
		return err
	}

	e, err := c.element.lookup(ctx, args[0])
	if err != nil {
		return err
	}

	data, err := e.Data(ctx)
	if err != nil {
		return err
	}

	if c.flagLinks {
		links, err := e.Links()
		if err != nil {
			return err
		}

		data["link"] = map[string]string(links)
	}

	out, err := yaml.Marshal(data)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s", out)
	return nil
}

// List.
type cmdElementList struct {
	global  *cmdGlobal
	element *cmdElement

	flagFormat string
}

var elementColumns = []cli.Column[api.ElementEntry]{
	{Header: "NAME", DataFunc: func(e api.ElementEntry) (string, error) { return e.Name, nil }},
	{Header: "TYPE", DataFunc: func(e api.ElementEntry) (string, error) { return e.Type, nil }},
	{Header: "HREF", DataFunc: func(e api.ElementEntry) (string, error) { return e.Href, nil }},
}

func (c *cmdElementList) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "list [<remote>:]<type> [<filter>]"
	cmd.Aliases = []string{"ls"}
	cmd.Short = "List elements"
	cmd.Long = `Description:
  List elements of a type, or of a type family such as
  "network_elements" or "engine_clusters".`
	cmd.Example = `  smc element list host
  smc element list prod:network_elements "lan*"`

	cmd.Flags().StringVarP(&c.flagFormat, "format", "f", cli.TableFormatTable, "Format (csv|json|table|yaml|compact)"+"``")
	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		return cli.ValidateFlagFormatForListOutput(cmd.Flag("format").Value.String())
	}

	cmd.RunE = c.Run

	return cmd
}

func (c *cmdElementList) Run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Quick checks.
	exit, err := c.global.CheckArgs(cmd, args, 1, 2)
	if exit {
		return err
	}

	conn, typ, err := c.global.ParseServer(ctx, args[0])
	if err != nil {
		return err
	}

	filter := "*"
	if len(args) == 2 {
		filter = args[1]
	}

	entries, err := conn.Search(ctx, smc.SearchArgs{Filter: filter, Context: typ})
	if err != nil {
		return err
	}

	sortEntries(entries)

	return cli.RenderSlice(cmd.OutOrStdout(), c.flagFormat, elementColumns, entries)
}

// sortEntries orders entries naturally by name, then type.
func sortEntries(entries []api.ElementEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return sortorder.NaturalLess(entries[i].Name, entries[j].Name)
		}

		return entries[i].Type < entries[j].Type
	})
}

// Delete.
type cmdElementDelete struct {
	global  *cmdGlobal
	element *cmdElement
}

func (c *cmdElementDelete) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "delete [<remote>:]<element>"
	cmd.Aliases = []string{"rm"}
	cmd.Short = "Delete elements"
	cmd.Long = `Description:
  Delete elements`

	cmd.RunE = c.Run

	return cmd
}

func (c *cmdElementDelete) Run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Quick checks.
	exit, err := c.global.CheckArgs(cmd, args, 1, 1)
	if exit {
		return err
	}

	e, err := c.element.lookup(ctx, args[0])
	if err != nil {
		return err
	}

	err = e.Delete(ctx)
	if err != nil {
		return err
	}

	if !c.global.flagQuiet {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Element %s deleted\n", e.Href())
	}

	return nil
}

// Edit.
type cmdElementEdit struct {
	global  *cmdGlobal
	element *cmdElement
}

func (c *cmdElementEdit) Command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "edit [<remote>:]<element>"
	cmd.Short = "Edit element configurations as YAML"
	cmd.Long = `Description:
  Edit element configurations as YAML

  Only the top level attributes changed in the editor are sent back.`

	cmd.RunE = c.Run

	return cmd
}

func (c *cmdElementEdit) Run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Quick checks.
	exit, err := c.global.CheckArgs(cmd, args, 1, 1)
	if exit {
		return err
	}

	e, err := c.element.lookup(ctx, args[0])
	if err != nil {
		return err
	}

	data, err := e.Data(ctx)
	if err != nil {
		return err
	}

	content, err := yaml.Marshal(data)
	if err != nil {
		return err
	}

	edited, err := cmdutil.TextEditor(content)
	if err != nil {
		return err
	}

	changes, err := changedAttributes(content, edited)
	if err != nil {
		return err
	}

	if len(changes) == 0 {
		return nil
	}

	return e.ModifyAttribute(ctx, changes)
}

// changedAttributes compares two YAML renditions of an element, returning the
// top level attributes added or modified in the second one.
func changedAttributes(original []byte, edited []byte) (map[string]any, error) {
	var before, after any

	err := yaml.Unmarshal(original, &before)
	if err != nil {
		return nil, err
	}

	err = yaml.Unmarshal(edited, &after)
	if err != nil {
		return nil, fmt.Errorf("Invalid YAML: %w", err)
	}

	beforeMap, _ := normalizeYAML(before).(map[string]any)
	afterMap, ok := normalizeYAML(after).(map[string]any)
	if !ok {
		return nil, errors.New("Edited document isn't a map")
	}

	removed := []string{}
	for k := range beforeMap {
		_, ok := afterMap[k]
		if !ok {
			removed = append(removed, k)
		}
	}

	if len(removed) > 0 {
		slices.Sort(removed)
		return nil, fmt.Errorf("Attributes can't be removed: %v", removed)
	}

	changes := map[string]any{}
	for k, v := range afterMap {
		if !reflect.DeepEqual(beforeMap[k], v) {
			changes[k] = v
		}
	}

	return changes, nil
}
