package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/goalrunner/internal/llm"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the registered tools",
	Args:  cobra.NoArgs,
	RunE:  runTools,
}

type categorized interface {
	Category() string
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	provider, err := newProvider(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	var client llm.Client
	if provider != nil {
		client = provider.Client
	}
	registry, err := newRegistry(cfg, client, logger)
	if err != nil {
		return err
	}

	descriptors := registry.Descriptors()
	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].Name < descriptors[j].Name })

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCATEGORY\tREQUIRED\tDESCRIPTION")
	for _, desc := range descriptors {
		category := "-"
		if tool, ok := registry.Get(desc.Name); ok {
			if c, ok := tool.(categorized); ok && c.Category() != "" {
				category = c.Category()
			}
		}
		required := "-"
		if len(desc.RequiredFields) > 0 {
			required = fmt.Sprint(desc.RequiredFields)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", desc.Name, category, required, desc.Description)
	}
	return w.Flush()
}
